package cache

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryStore is an in-process Store with TTL expiry and LRU eviction.
type MemoryStore struct {
	mu          sync.RWMutex
	items       map[string]*entry
	lru         *lruList
	maxItems    int
	maxMemory   int64
	currentMem  int64
	stats       *Stats
	stopCleanup chan struct{}
	stopOnce    sync.Once
	done        chan struct{}
}

type entry struct {
	value     []byte
	createdAt time.Time
	ttl       time.Duration
	node      *lruNode
}

// Stats tracks cache performance metrics
type Stats struct {
	mu        sync.RWMutex
	Hits      int64
	Misses    int64
	Evictions int64
	Expired   int64
	TotalSize int64
	ItemCount int64
}

// MemoryConfig contains in-memory cache configuration
type MemoryConfig struct {
	MaxItems        int
	MaxMemoryMB     int64
	CleanupInterval time.Duration
}

// DefaultMemoryConfig returns sensible cache defaults
func DefaultMemoryConfig() MemoryConfig {
	return MemoryConfig{
		MaxItems:        256,
		MaxMemoryMB:     32,
		CleanupInterval: time.Minute,
	}
}

// NewMemoryStore creates a store and starts its expiry sweeper. Call Close to
// stop the sweeper.
func NewMemoryStore(config MemoryConfig) *MemoryStore {
	defaults := DefaultMemoryConfig()
	if config.MaxItems <= 0 {
		config.MaxItems = defaults.MaxItems
	}
	if config.MaxMemoryMB <= 0 {
		config.MaxMemoryMB = defaults.MaxMemoryMB
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = defaults.CleanupInterval
	}

	s := &MemoryStore{
		items:       make(map[string]*entry),
		lru:         &lruList{},
		maxItems:    config.MaxItems,
		maxMemory:   config.MaxMemoryMB * 1024 * 1024,
		stats:       &Stats{},
		stopCleanup: make(chan struct{}),
		done:        make(chan struct{}),
	}

	go s.cleanupRoutine(config.CleanupInterval)

	return s
}

// Get retrieves a value. Expired entries are removed and reported as misses.
func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, exists := s.items[key]
	if !exists {
		s.stats.recordMiss()
		return nil, false, nil
	}

	if item.isExpired() {
		s.removeItem(key)
		s.stats.recordExpired()
		s.stats.recordMiss()
		return nil, false, nil
	}

	s.lru.moveToFront(item.node)
	s.stats.recordHit()
	return item.value, true, nil
}

// Set adds or replaces a value. A zero ttl never expires.
func (s *MemoryStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	size := int64(len(value))
	if size > s.maxMemory {
		return fmt.Errorf("item size %d exceeds max memory %d", size, s.maxMemory)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, exists := s.items[key]; exists {
		s.currentMem -= int64(len(existing.value))
		existing.value = value
		existing.createdAt = time.Now()
		existing.ttl = ttl
		s.currentMem += size
		s.lru.moveToFront(existing.node)
		s.stats.updateSize(int64(len(s.items)), s.currentMem)
		return nil
	}

	for (len(s.items) >= s.maxItems || s.currentMem+size > s.maxMemory) && s.lru.size > 0 {
		evictKey := s.lru.removeTail()
		s.dropItem(evictKey)
		s.stats.recordEviction()
	}

	item := &entry{
		value:     value,
		createdAt: time.Now(),
		ttl:       ttl,
	}
	item.node = s.lru.addToFront(key)

	s.items[key] = item
	s.currentMem += size
	s.stats.updateSize(int64(len(s.items)), s.currentMem)

	return nil
}

// Delete removes a key.
func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeItem(key)
	return nil
}

// GetStats returns a snapshot of cache statistics
func (s *MemoryStore) GetStats() Stats {
	s.stats.mu.RLock()
	defer s.stats.mu.RUnlock()
	return Stats{
		Hits:      s.stats.Hits,
		Misses:    s.stats.Misses,
		Evictions: s.stats.Evictions,
		Expired:   s.stats.Expired,
		TotalSize: s.stats.TotalSize,
		ItemCount: s.stats.ItemCount,
	}
}

// Close stops the sweeper and waits for it to exit. Safe to call twice.
func (s *MemoryStore) Close() error {
	s.stopOnce.Do(func() { close(s.stopCleanup) })
	<-s.done
	return nil
}

// removeItem unlinks and deletes a key (caller must hold lock)
func (s *MemoryStore) removeItem(key string) {
	if item, exists := s.items[key]; exists {
		s.lru.remove(item.node)
		s.dropItem(key)
	}
}

// dropItem deletes a key already unlinked from the LRU list (caller must hold lock)
func (s *MemoryStore) dropItem(key string) {
	if item, exists := s.items[key]; exists {
		s.currentMem -= int64(len(item.value))
		delete(s.items, key)
		s.stats.updateSize(int64(len(s.items)), s.currentMem)
	}
}

func (s *MemoryStore) cleanupRoutine(interval time.Duration) {
	defer close(s.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.cleanupExpired()
		case <-s.stopCleanup:
			return
		}
	}
}

func (s *MemoryStore) cleanupExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()

	var toRemove []string
	for key, item := range s.items {
		if item.isExpired() {
			toRemove = append(toRemove, key)
		}
	}

	for _, key := range toRemove {
		s.removeItem(key)
		s.stats.recordExpired()
	}
}

func (e *entry) isExpired() bool {
	if e.ttl == 0 {
		return false
	}
	return time.Since(e.createdAt) > e.ttl
}

// LRU list

type lruList struct {
	head *lruNode
	tail *lruNode
	size int
}

type lruNode struct {
	key  string
	prev *lruNode
	next *lruNode
}

func (l *lruList) addToFront(key string) *lruNode {
	node := &lruNode{key: key}

	if l.head == nil {
		l.head = node
		l.tail = node
	} else {
		node.next = l.head
		l.head.prev = node
		l.head = node
	}

	l.size++
	return node
}

func (l *lruList) moveToFront(node *lruNode) {
	if node == l.head {
		return
	}

	if node.prev != nil {
		node.prev.next = node.next
	}
	if node.next != nil {
		node.next.prev = node.prev
	}
	if node == l.tail {
		l.tail = node.prev
	}

	node.prev = nil
	node.next = l.head
	l.head.prev = node
	l.head = node
}

func (l *lruList) remove(node *lruNode) {
	if node.prev != nil {
		node.prev.next = node.next
	} else {
		l.head = node.next
	}

	if node.next != nil {
		node.next.prev = node.prev
	} else {
		l.tail = node.prev
	}

	node.prev = nil
	node.next = nil
	l.size--
}

func (l *lruList) removeTail() string {
	if l.tail == nil {
		return ""
	}

	key := l.tail.key
	l.remove(l.tail)
	return key
}

// Stats methods

func (st *Stats) recordHit() {
	st.mu.Lock()
	st.Hits++
	st.mu.Unlock()
}

func (st *Stats) recordMiss() {
	st.mu.Lock()
	st.Misses++
	st.mu.Unlock()
}

func (st *Stats) recordEviction() {
	st.mu.Lock()
	st.Evictions++
	st.mu.Unlock()
}

func (st *Stats) recordExpired() {
	st.mu.Lock()
	st.Expired++
	st.mu.Unlock()
}

func (st *Stats) updateSize(items, memory int64) {
	st.mu.Lock()
	st.ItemCount = items
	st.TotalSize = memory
	st.mu.Unlock()
}

// HitRate returns hits as a percentage of lookups.
func (st *Stats) HitRate() float64 {
	total := st.Hits + st.Misses
	if total == 0 {
		return 0
	}
	return float64(st.Hits) / float64(total) * 100
}
