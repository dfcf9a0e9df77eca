// Package fits writes and reads the multi-extension image products produced by readout.
// It supports the subset of FITS the simulator emits: an empty primary HDU followed by
// 2D float64 IMAGE extensions. This package has no dependencies on sim/.
package fits

import "fmt"

// Card is one header keyword.
type Card struct {
	Key     string
	Value   any
	Comment string
}

// Header is an ordered list of cards with unique keys.
type Header struct {
	cards []Card
	index map[string]int
}

// NewHeader creates a header holding cards, later duplicates overwriting earlier ones.
func NewHeader(cards ...Card) *Header {
	h := &Header{index: make(map[string]int)}
	for _, c := range cards {
		h.Set(c.Key, c.Value, c.Comment)
	}
	return h
}

// Set adds or overwrites a card. Keys longer than 8 characters are written with the
// HIERARCH convention.
func (h *Header) Set(key string, value any, comment string) {
	if h.index == nil {
		h.index = make(map[string]int)
	}
	if i, ok := h.index[key]; ok {
		h.cards[i] = Card{Key: key, Value: value, Comment: comment}
		return
	}
	h.index[key] = len(h.cards)
	h.cards = append(h.cards, Card{Key: key, Value: value, Comment: comment})
}

// Extend sets every card in order.
func (h *Header) Extend(cards []Card) {
	for _, c := range cards {
		h.Set(c.Key, c.Value, c.Comment)
	}
}

// Get returns the value stored under key.
func (h *Header) Get(key string) (any, bool) {
	if h == nil {
		return nil, false
	}
	i, ok := h.index[key]
	if !ok {
		return nil, false
	}
	return h.cards[i].Value, true
}

// Float returns a numeric card value.
func (h *Header) Float(key string) (float64, error) {
	v, ok := h.Get(key)
	if !ok {
		return 0, fmt.Errorf("header keyword %s not found", key)
	}
	switch x := v.(type) {
	case float64:
		return x, nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	}
	return 0, fmt.Errorf("header keyword %s is not numeric: %v", key, v)
}

// Cards returns a copy of the cards in order.
func (h *Header) Cards() []Card {
	if h == nil {
		return nil
	}
	return append([]Card(nil), h.cards...)
}

// Len returns the number of cards.
func (h *Header) Len() int {
	if h == nil {
		return 0
	}
	return len(h.cards)
}
