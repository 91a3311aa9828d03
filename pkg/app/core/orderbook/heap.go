package orderbook

import "container/heap"

// priceHeap tracks the distinct prices of one ladder. Bids keep the highest
// price on top, asks the lowest. Use container/heap to manipulate it.
type priceHeap struct {
	prices       []int64
	highestFirst bool
}

func newPriceHeap(highestFirst bool) *priceHeap {
	h := &priceHeap{highestFirst: highestFirst}
	heap.Init(h)
	return h
}

func (h *priceHeap) Len() int { return len(h.prices) }

func (h *priceHeap) Less(i, j int) bool {
	if h.highestFirst {
		return h.prices[i] > h.prices[j]
	}
	return h.prices[i] < h.prices[j]
}

func (h *priceHeap) Swap(i, j int) { h.prices[i], h.prices[j] = h.prices[j], h.prices[i] }

func (h *priceHeap) Push(x interface{}) {
	h.prices = append(h.prices, x.(int64))
}

func (h *priceHeap) Pop() interface{} {
	old := h.prices
	n := len(old)
	x := old[n-1]
	h.prices = old[0 : n-1]
	return x
}

// Peek returns the best price without removing it
func (h *priceHeap) Peek() (int64, bool) {
	if len(h.prices) == 0 {
		return 0, false
	}
	return h.prices[0], true
}

// drop removes price from the heap. The top is popped in O(log n); any other
// price needs a linear scan, which only happens on cancellation.
func (h *priceHeap) drop(price int64) {
	if top, ok := h.Peek(); ok && top == price {
		heap.Pop(h)
		return
	}
	for i, p := range h.prices {
		if p == price {
			heap.Remove(h, i)
			return
		}
	}
}
