package warehouse

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type shelfKey struct {
	bookID string
	shelf  string
}

type memoryRepo struct {
	mu        sync.Mutex
	bookInfo  map[string]BookInfo
	inventory map[shelfKey]InventoryItem
}

func NewMemoryRepository() Repository {
	return &memoryRepo{
		bookInfo:  make(map[string]BookInfo),
		inventory: make(map[shelfKey]InventoryItem),
	}
}

func (r *memoryRepo) CacheBookInfo(_ context.Context, info BookInfo) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	info.LastUpdated = time.Now()
	r.bookInfo[info.BookID] = info
	return nil
}

func (r *memoryRepo) BookInfo(_ context.Context, bookID string) (*BookInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	info, ok := r.bookInfo[bookID]
	if !ok {
		return nil, nil
	}
	return &info, nil
}

func (r *memoryRepo) AllBookInfo(_ context.Context) ([]BookInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]BookInfo, 0, len(r.bookInfo))
	for _, info := range r.bookInfo {
		out = append(out, info)
	}
	return out, nil
}

func (r *memoryRepo) SetShelf(_ context.Context, bookID, shelf string, quantity int) error {
	if quantity < 0 {
		return fmt.Errorf("set shelf %s/%s: negative quantity %d", bookID, shelf, quantity)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inventory[shelfKey{bookID, shelf}] = InventoryItem{
		BookID:      bookID,
		Shelf:       shelf,
		Quantity:    quantity,
		LastUpdated: time.Now(),
	}
	return nil
}

func (r *memoryRepo) ShelvesFor(_ context.Context, bookID string) (map[string]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]int)
	for k, it := range r.inventory {
		if k.bookID == bookID {
			out[k.shelf] = it.Quantity
		}
	}
	return out, nil
}
