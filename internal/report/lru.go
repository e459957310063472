package report

import (
	"container/list"
	"sync"

	"github.com/deixis/hangcheck/internal/verdict"
)

// DefaultCacheBytes bounds the evidence an LRUStore keeps in memory.
const DefaultCacheBytes = 8 << 20

// entryOverhead is charged per cached verdict on top of its strings, so a
// flood of empty-output verdicts is still bounded.
const entryOverhead = 256

// LRUStore keeps recently used verdicts in memory in front of a backing
// Store. The budget is in bytes of evidence held, not in entries: a single
// verdict may carry up to twice the supervisor's output cap. A verdict
// larger than the whole budget is only written through.
type LRUStore struct {
	mu     sync.Mutex
	budget int
	used   int
	back   Store

	order *list.List // front is most recently used
	items map[string]*list.Element
}

type cached struct {
	verdict *verdict.Verdict
	cost    int
}

// NewLRUStore creates a cache holding at most budget bytes of verdicts,
// delegating to back on misses. A non-positive budget disables caching.
func NewLRUStore(budget int, back Store) *LRUStore {
	return &LRUStore{
		budget: max(budget, 0),
		back:   back,
		order:  list.New(),
		items:  make(map[string]*list.Element),
	}
}

// cost approximates the memory a verdict pins.
func cost(v *verdict.Verdict) int {
	return entryOverhead + len(v.Output) + len(v.Payload) + len(v.Failure) + len(v.Reason)
}

// Save writes the verdict to the backing store, then caches it.
func (s *LRUStore) Save(v *verdict.Verdict) error {
	if err := s.back.Save(v); err != nil {
		return err
	}
	s.put(v)
	return nil
}

// Load serves from memory when possible, otherwise from the backing store,
// promoting the result.
func (s *LRUStore) Load(runID string) (*verdict.Verdict, error) {
	s.mu.Lock()
	if el, ok := s.items[runID]; ok {
		s.order.MoveToFront(el)
		v := el.Value.(*cached).verdict
		s.mu.Unlock()
		return v, nil
	}
	s.mu.Unlock()

	v, err := s.back.Load(runID)
	if err != nil {
		return nil, err
	}
	s.put(v)
	return v, nil
}

func (s *LRUStore) put(v *verdict.Verdict) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if el, ok := s.items[v.RunID]; ok {
		s.drop(el)
	}
	c := &cached{verdict: v, cost: cost(v)}
	if c.cost > s.budget {
		return
	}
	s.items[v.RunID] = s.order.PushFront(c)
	s.used += c.cost
	for s.used > s.budget {
		s.drop(s.order.Back())
	}
}

func (s *LRUStore) drop(el *list.Element) {
	c := s.order.Remove(el).(*cached)
	delete(s.items, c.verdict.RunID)
	s.used -= c.cost
}

// Len returns the number of cached verdicts.
func (s *LRUStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Bytes returns the evidence bytes currently charged against the budget.
func (s *LRUStore) Bytes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.used
}
