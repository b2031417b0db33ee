package orders

import (
	"context"
	"sort"
	"sync"
	"time"
)

type memoryRepo struct {
	mu     sync.Mutex
	refs   map[string]BookReference
	orders map[string]Order
}

func NewMemoryRepository() Repository {
	return &memoryRepo{
		refs:   make(map[string]BookReference),
		orders: make(map[string]Order),
	}
}

func (r *memoryRepo) CacheBookReference(_ context.Context, bookID, title, author string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refs[bookID] = BookReference{
		BookID:      bookID,
		Title:       title,
		Author:      author,
		LastUpdated: time.Now(),
	}
	return nil
}

func (r *memoryRepo) BookReference(_ context.Context, bookID string) (*BookReference, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ref, ok := r.refs[bookID]
	if !ok {
		return nil, nil
	}
	return &ref, nil
}

func (r *memoryRepo) IsValidBookID(_ context.Context, bookID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.refs[bookID]
	return ok, nil
}

func (r *memoryRepo) ValidBookIDs(_ context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.refs))
	for id := range r.refs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (r *memoryRepo) SaveOrder(_ context.Context, o Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders[o.ID] = o
	return nil
}

func (r *memoryRepo) Order(_ context.Context, id string) (*Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, nil
	}
	return &o, nil
}

func (r *memoryRepo) Orders(_ context.Context) ([]Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Order, 0, len(r.orders))
	for _, o := range r.orders {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func (r *memoryRepo) SetOrderStatus(_ context.Context, id string, status Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if o, ok := r.orders[id]; ok {
		o.Status = status
		r.orders[id] = o
	}
	return nil
}
