package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/bazar-store/bazar/internal/core/domain"
)

// MemoryCatalog keeps items in process memory. Stock mutations on one item
// are serialized by a per-item mutex; distinct items do not contend.
type MemoryCatalog struct {
	mu    sync.RWMutex
	items map[int]*memoryItem
}

type memoryItem struct {
	mu   sync.Mutex
	item domain.Item
}

func NewMemoryCatalog() *MemoryCatalog {
	return &MemoryCatalog{items: make(map[int]*memoryItem)}
}

func (c *MemoryCatalog) entry(id int) (*memoryItem, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.items[id]
	return e, ok
}

func (c *MemoryCatalog) GetItem(ctx context.Context, id int) (domain.Item, error) {
	e, ok := c.entry(id)
	if !ok {
		return domain.Item{}, domain.ErrNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.item, nil
}

func (c *MemoryCatalog) ListItems(ctx context.Context, pred func(domain.Item) bool) ([]domain.Item, error) {
	c.mu.RLock()
	entries := make([]*memoryItem, 0, len(c.items))
	for _, e := range c.items {
		entries = append(entries, e)
	}
	c.mu.RUnlock()

	out := make([]domain.Item, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		it := e.item
		e.mu.Unlock()
		if pred == nil || pred(it) {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (c *MemoryCatalog) PutItem(ctx context.Context, item domain.Item) error {
	if item.Stock < 0 {
		return fmt.Errorf("negative stock for item %d", item.ID)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.items[item.ID]; ok {
		e.mu.Lock()
		e.item = item
		e.mu.Unlock()
		return nil
	}
	c.items[item.ID] = &memoryItem{item: item}
	return nil
}

func (c *MemoryCatalog) Count(ctx context.Context) (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items), nil
}

func (c *MemoryCatalog) ReserveStock(ctx context.Context, id, quantity int) (int, error) {
	e, ok := c.entry(id)
	if !ok {
		return 0, domain.ErrNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.item.Stock < quantity {
		return 0, domain.ErrOutOfStock
	}
	e.item.Stock -= quantity
	return e.item.Stock, nil
}

func (c *MemoryCatalog) RestoreStock(ctx context.Context, id, quantity int) (int, error) {
	e, ok := c.entry(id)
	if !ok {
		return 0, domain.ErrNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.item.Stock += quantity
	return e.item.Stock, nil
}

// MemoryOrderStore is the in-memory append-only order store.
type MemoryOrderStore struct {
	mu     sync.RWMutex
	orders map[string]domain.Order
}

func NewMemoryOrderStore() *MemoryOrderStore {
	return &MemoryOrderStore{orders: make(map[string]domain.Order)}
}

func (s *MemoryOrderStore) AppendOrder(ctx context.Context, order domain.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[order.OrderID]; ok {
		return fmt.Errorf("order %s already exists", order.OrderID)
	}
	s.orders[order.OrderID] = order
	return nil
}

func (s *MemoryOrderStore) GetOrder(ctx context.Context, orderID string) (domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[orderID]
	if !ok {
		return domain.Order{}, domain.ErrNotFound
	}
	return o, nil
}

// MemoryIdempotency tracks idempotency claims in process memory. An empty
// value marks an in-flight claim.
type MemoryIdempotency struct {
	mu     sync.Mutex
	claims map[string]string
}

func NewMemoryIdempotency() *MemoryIdempotency {
	return &MemoryIdempotency{claims: make(map[string]string)}
}

func (s *MemoryIdempotency) Claim(ctx context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if orderID, ok := s.claims[key]; ok {
		return orderID, false, nil
	}
	s.claims[key] = ""
	return "", true, nil
}

func (s *MemoryIdempotency) Complete(ctx context.Context, key, orderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.claims[key] = orderID
	return nil
}

func (s *MemoryIdempotency) Release(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.claims, key)
	return nil
}
