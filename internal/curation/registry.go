package curation

import (
	"sort"
	"sync"
)

// Registry owns one Board per question index.
type Registry struct {
	boards map[int]*Board
	mu     sync.RWMutex
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{boards: make(map[int]*Board)}
}

// Board returns the board for questionIndex, creating it on first use.
func (r *Registry) Board(questionIndex int) *Board {
	r.mu.RLock()
	b, ok := r.boards[questionIndex]
	r.mu.RUnlock()
	if ok {
		return b
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.boards[questionIndex]; ok {
		return b
	}
	b = NewBoard(questionIndex)
	r.boards[questionIndex] = b
	return b
}

// Loaded returns the boards that have had a pass applied, ordered by
// question index.
func (r *Registry) Loaded() []*Board {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Board, 0, len(r.boards))
	for _, b := range r.boards {
		if b.Loaded() {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].questionIndex < out[j].questionIndex
	})
	return out
}
