// Package feed fans executed trades out to subscribers. Every subscription is
// unbounded: a slow consumer never blocks the publisher or other consumers.
package feed

import (
	"sync"

	"github.com/uhyunpark/crossbook/pkg/app/core/orderbook"
	"github.com/uhyunpark/crossbook/pkg/util"
)

// AllSymbols subscribes to every symbol. "" is accepted as well.
const AllSymbols = "*"

// Subscription is a pull-based trade stream. Trades arrive on C in publish
// order; C is closed after Close or when the publisher closes.
type Subscription struct {
	C <-chan orderbook.Trade

	symbol string
	out    chan orderbook.Trade
	buf    *util.Queue[orderbook.Trade]
	done   chan struct{}
	once   sync.Once
	pub    *Publisher
}

func (s *Subscription) Symbol() string { return s.symbol }

// Close stops the stream and detaches it from the publisher.
func (s *Subscription) Close() {
	s.pub.remove(s)
	s.stop()
}

func (s *Subscription) stop() {
	s.once.Do(func() {
		close(s.done)
		s.buf.Close()
	})
}

func (s *Subscription) pump() {
	defer close(s.out)
	for {
		t, ok := s.buf.Pop()
		if !ok {
			return
		}
		select {
		case s.out <- t:
		case <-s.done:
			return
		}
	}
}

// Publisher routes trades to the subscriptions and callbacks of their symbol.
type Publisher struct {
	mu        sync.RWMutex
	subs      map[string]map[*Subscription]struct{}
	callbacks map[string]map[int]func(orderbook.Trade)
	nextID    int
	closed    bool
}

func NewPublisher() *Publisher {
	return &Publisher{
		subs:      make(map[string]map[*Subscription]struct{}),
		callbacks: make(map[string]map[int]func(orderbook.Trade)),
	}
}

func key(symbol string) string {
	if symbol == "" {
		return AllSymbols
	}
	return symbol
}

// Subscribe opens a lazy stream of symbol's trades. Nothing is buffered until
// the subscription exists; history lives in the ledger.
func (p *Publisher) Subscribe(symbol string) *Subscription {
	out := make(chan orderbook.Trade)
	s := &Subscription{
		C:      out,
		symbol: key(symbol),
		out:    out,
		buf:    util.NewQueue[orderbook.Trade](),
		done:   make(chan struct{}),
		pub:    p,
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		s.stop()
		close(out)
		return s
	}
	set := p.subs[s.symbol]
	if set == nil {
		set = make(map[*Subscription]struct{})
		p.subs[s.symbol] = set
	}
	set[s] = struct{}{}
	p.mu.Unlock()

	go s.pump()
	return s
}

// OnTrade registers a push callback. Callbacks run synchronously on the
// publishing goroutine, so they must not block. The returned func unregisters.
func (p *Publisher) OnTrade(symbol string, fn func(orderbook.Trade)) (cancel func()) {
	k := key(symbol)
	p.mu.Lock()
	p.nextID++
	id := p.nextID
	if p.callbacks[k] == nil {
		p.callbacks[k] = make(map[int]func(orderbook.Trade))
	}
	p.callbacks[k][id] = fn
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		delete(p.callbacks[k], id)
		p.mu.Unlock()
	}
}

// Publish delivers t to subscribers of t.Symbol and of all symbols.
// Callbacks run after the lock is released, so they may subscribe or cancel.
func (p *Publisher) Publish(t orderbook.Trade) {
	var fns []func(orderbook.Trade)
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return
	}
	for _, k := range []string{t.Symbol, AllSymbols} {
		for s := range p.subs[k] {
			s.buf.Push(t)
		}
		for _, fn := range p.callbacks[k] {
			fns = append(fns, fn)
		}
	}
	p.mu.RUnlock()

	for _, fn := range fns {
		fn(t)
	}
}

func (p *Publisher) remove(s *Subscription) {
	p.mu.Lock()
	delete(p.subs[s.symbol], s)
	p.mu.Unlock()
}

// Subscribers counts open subscriptions for symbol.
func (p *Publisher) Subscribers(symbol string) int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.subs[key(symbol)])
}

// Close ends every subscription. Trades already queued are still delivered
// before C closes.
func (p *Publisher) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	subs := p.subs
	p.subs = make(map[string]map[*Subscription]struct{})
	p.callbacks = make(map[string]map[int]func(orderbook.Trade))
	p.mu.Unlock()

	for _, set := range subs {
		for s := range set {
			s.buf.Close()
		}
	}
}
