package storage

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"

	"github.com/uhyunpark/crossbook/pkg/app/core/orderbook"
	"github.com/uhyunpark/crossbook/pkg/events"
	"github.com/uhyunpark/crossbook/pkg/util"
)

// Journal appends every engine event to a file as one JSON line.
type Journal struct {
	mu     sync.Mutex
	f      *os.File
	w      *bufio.Writer
	clock  util.Clock
	logger *zap.SugaredLogger
}

func NewJournal(path string, logger *zap.SugaredLogger) (*Journal, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}
	return &Journal{f: f, w: bufio.NewWriter(f), clock: util.RealClock{}, logger: logger}, nil
}

func (j *Journal) Append(e events.Event) {
	e.V = 1
	if e.Time.IsZero() {
		e.Time = j.clock.Now()
	}
	line, err := json.Marshal(e)
	if err != nil {
		j.logger.Errorw("journal_encode_failed", "type", e.Type.String(), "err", err)
		return
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	line = append(line, '\n')
	if _, err := j.w.Write(line); err != nil {
		j.logger.Warnw("journal_write_failed", "err", err)
		return
	}
	if err := j.w.Flush(); err != nil {
		j.logger.Warnw("journal_write_failed", "err", err)
	}
}

func (j *Journal) OrderAccepted(o orderbook.Order) {
	j.Append(events.Event{Type: events.OrderAccepted, Symbol: o.Symbol, Order: &o})
}

func (j *Journal) OrderRejected(o orderbook.Order, reason error) {
	j.Append(events.Event{Type: events.OrderRejected, Symbol: o.Symbol, Order: &o, Reason: reason.Error()})
}

func (j *Journal) TradeExecuted(t orderbook.Trade) {
	j.Append(events.Event{Type: events.TradeExecuted, Symbol: t.Symbol, Trade: &t})
}

func (j *Journal) OrderCancelled(o orderbook.Order, reason string) {
	j.Append(events.Event{Type: events.OrderCancelled, Symbol: o.Symbol, Order: &o, Reason: reason})
}

func (j *Journal) StopTriggered(o orderbook.Order, marketPrice int64) {
	j.Append(events.Event{Type: events.StopTriggered, Symbol: o.Symbol, Order: &o, MarketPrice: marketPrice})
}

func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.w.Flush(); err != nil {
		j.f.Close()
		return err
	}
	return j.f.Close()
}

// ReadJournal decodes every event in a journal file, oldest first.
func ReadJournal(path string) ([]events.Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}
	defer f.Close()

	var out []events.Event
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for line := 1; sc.Scan(); line++ {
		var e events.Event
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			return nil, fmt.Errorf("journal %s line %d: %w", path, line, err)
		}
		out = append(out, e)
	}
	return out, sc.Err()
}
