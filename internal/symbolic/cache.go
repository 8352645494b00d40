package symbolic

import (
	"container/list"
	"fmt"
	"sync"

	"github.com/expr-lang/expr/vm"
)

// ExprLRUCache holds compiled expr-lang programs keyed by source text,
// evicting the least recently used program once full. Safe for concurrent
// use.
type ExprLRUCache struct {
	mu     sync.Mutex
	items  map[string]*list.Element
	order  *list.List
	limit  int
	hits   int64
	misses int64
}

type cached struct {
	source  string
	program *vm.Program
}

// NewExprLRUCache returns a cache holding at most limit programs. A limit
// below one selects DefaultExprCacheSize.
func NewExprLRUCache(limit int) *ExprLRUCache {
	if limit < 1 {
		limit = DefaultExprCacheSize
	}
	return &ExprLRUCache{
		items: make(map[string]*list.Element),
		order: list.New(),
		limit: limit,
	}
}

// Get returns the program compiled from source, marking it recently used.
func (c *ExprLRUCache) Get(source string) (*vm.Program, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	elem, ok := c.items[source]
	if !ok {
		c.misses++
		return nil, false
	}
	c.hits++
	c.order.MoveToFront(elem)
	return elem.Value.(*cached).program, true
}

// Put stores program under source, replacing any previous program.
func (c *ExprLRUCache) Put(source string, program *vm.Program) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.items[source]; ok {
		elem.Value.(*cached).program = program
		c.order.MoveToFront(elem)
		return
	}
	c.items[source] = c.order.PushFront(&cached{source: source, program: program})
	c.evictLocked()
}

// Resize changes the limit, evicting immediately if the cache shrinks.
func (c *ExprLRUCache) Resize(limit int) {
	if limit < 1 {
		limit = 1
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.limit = limit
	c.evictLocked()
}

func (c *ExprLRUCache) evictLocked() {
	for c.order.Len() > c.limit {
		oldest := c.order.Back()
		delete(c.items, oldest.Value.(*cached).source)
		c.order.Remove(oldest)
	}
}

// Clear drops every program. Statistics are kept.
func (c *ExprLRUCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*list.Element)
	c.order.Init()
}

// Len returns the number of cached programs.
func (c *ExprLRUCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Stats returns the size, hit and miss counts, and hit ratio.
func (c *ExprLRUCache) Stats() (size int, hits, misses int64, ratio float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if total := c.hits + c.misses; total > 0 {
		ratio = float64(c.hits) / float64(total)
	}
	return c.order.Len(), c.hits, c.misses, ratio
}

func (c *ExprLRUCache) String() string {
	size, hits, misses, ratio := c.Stats()
	return fmt.Sprintf("ExprLRUCache{size=%d, hits=%d, misses=%d, hit_ratio=%.2f%%}", size, hits, misses, ratio*100)
}
