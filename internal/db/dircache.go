package db

import (
	"container/list"
	"database/sql"
	"sync"
)

const dirCacheSize = 4096

// lru is a small mutex-guarded least-recently-used map.
type lru[K comparable, V any] struct {
	mu    sync.Mutex
	max   int
	ll    *list.List
	items map[K]*list.Element
}

type lruItem[K comparable, V any] struct {
	key   K
	value V
}

func newLRU[K comparable, V any](max int) *lru[K, V] {
	return &lru[K, V]{
		max:   max,
		ll:    list.New(),
		items: make(map[K]*list.Element),
	}
}

func (c *lru[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		c.ll.MoveToFront(el)
		return el.Value.(lruItem[K, V]).value, true
	}
	var zero V
	return zero, false
}

func (c *lru[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		el.Value = lruItem[K, V]{key: key, value: value}
		c.ll.MoveToFront(el)
		return
	}
	c.items[key] = c.ll.PushFront(lruItem[K, V]{key: key, value: value})

	for c.ll.Len() > c.max {
		last := c.ll.Back()
		c.ll.Remove(last)
		delete(c.items, last.Value.(lruItem[K, V]).key)
	}
}

func (c *lru[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

var dirIDCaches sync.Map // map[*sql.DB]*lru[string, int64]

// dirID resolves a directory path to its id, caching lookups per database.
func dirID(db *sql.DB, path string) (int64, error) {
	cached, _ := dirIDCaches.LoadOrStore(db, newLRU[string, int64](dirCacheSize))
	cache := cached.(*lru[string, int64])
	if id, ok := cache.Get(path); ok {
		return id, nil
	}
	var id int64
	if err := db.QueryRow(`SELECT id FROM dirs WHERE path = ?`, path).Scan(&id); err != nil {
		return 0, err
	}
	cache.Set(path, id)
	return id, nil
}

// forgetDB drops the cache kept for db.
func forgetDB(db *sql.DB) {
	dirIDCaches.Delete(db)
}
