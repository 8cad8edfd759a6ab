package directory

import (
	"sync"
	"time"

	"github.com/MrSnakeDoc/sevasetu/internal/domain"
)

// Index is the in-memory supplier directory. It is replaced wholesale on
// reload and only hands out copies.
type Index struct {
	mu         sync.RWMutex
	suppliers  map[string]*domain.Supplier // ID -> Supplier
	order      []string                    // IDs in directory order
	lastReload time.Time
}

// NewIndex creates an empty index
func NewIndex() *Index {
	return &Index{
		suppliers: make(map[string]*domain.Supplier),
	}
}

// Replace swaps the whole directory. Usage counters of suppliers that survive
// the reload are carried over.
func (idx *Index) Replace(suppliers []*domain.Supplier) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	next := make(map[string]*domain.Supplier, len(suppliers))
	order := make([]string, 0, len(suppliers))
	for _, s := range suppliers {
		cp := *s
		if prev, ok := idx.suppliers[s.ID]; ok && cp.Counter == 0 {
			cp.Counter = prev.Counter
		}
		next[s.ID] = &cp
		order = append(order, s.ID)
	}

	idx.suppliers = next
	idx.order = order
	idx.lastReload = time.Now()
}

// Get returns a copy of the supplier with the given id
func (idx *Index) Get(id string) (domain.Supplier, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	s, ok := idx.suppliers[id]
	if !ok {
		return domain.Supplier{}, false
	}
	return *s, true
}

// All returns every supplier in directory order
func (idx *Index) All() []domain.Supplier {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	out := make([]domain.Supplier, 0, len(idx.order))
	for _, id := range idx.order {
		out = append(out, *idx.suppliers[id])
	}
	return out
}

// ByCategory returns the suppliers of one category in directory order
func (idx *Index) ByCategory(cat domain.Category) []domain.Supplier {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	out := make([]domain.Supplier, 0)
	for _, id := range idx.order {
		if s := idx.suppliers[id]; s.Category == cat {
			out = append(out, *s)
		}
	}
	return out
}

// Grouped returns the category -> suppliers view served to the UI.
// Every known category is present, possibly empty.
func (idx *Index) Grouped() map[domain.Category][]domain.Supplier {
	out := make(map[domain.Category][]domain.Supplier, len(domain.Categories))
	for _, c := range domain.Categories {
		out[c] = []domain.Supplier{}
	}
	for _, s := range idx.All() {
		out[s.Category] = append(out[s.Category], s)
	}
	return out
}

// Count returns the number of suppliers in the index
func (idx *Index) Count() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	return len(idx.suppliers)
}

// IncrementCounter increments the redirect counter for a supplier
func (idx *Index) IncrementCounter(id string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if s, ok := idx.suppliers[id]; ok {
		s.Counter++
	}
}

// SetCounters overwrites counters from an external source (Redis)
func (idx *Index) SetCounters(counters map[string]int64) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	for id, n := range counters {
		if s, ok := idx.suppliers[id]; ok {
			s.Counter = n
		}
	}
}

// LastReload returns the timestamp of the last Replace
func (idx *Index) LastReload() time.Time {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	return idx.lastReload
}
