/*
 * ZDNS Copyright 2022 Regents of the University of Michigan
 *
 * Licensed under the Apache License, Version 2.0 (the "License"); you may not
 * use this file except in compliance with the License. You may obtain a copy
 * of the License at http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or
 * implied. See the License for the specific language governing
 * permissions and limitations under the License.
 */
package cachehash

import (
	"container/list"
	"sync"
)

// CacheHash is an LRU cache implemented with a hash map and a doubly linked list. The list stores key-value pairs
// in the order they were accessed, with the most recently accessed key-value pair at the front of the list.
// It is safe for concurrent use.
type CacheHash[K comparable, V any] struct {
	mu      sync.Mutex
	h       map[K]*list.Element
	l       *list.List
	maxLen  int
	ejectCB func(K, V)
}

type keyValue[K comparable, V any] struct {
	Key   K
	Value V
}

// New returns a cache holding at most maxLen entries. A maxLen < 1 is treated as 1.
func New[K comparable, V any](maxLen int) *CacheHash[K, V] {
	if maxLen < 1 {
		maxLen = 1
	}
	return &CacheHash[K, V]{
		h:      make(map[K]*list.Element),
		l:      list.New(),
		maxLen: maxLen,
	}
}

// eject removes the least-recently used key-value pair. The lock must be held.
func (c *CacheHash[K, V]) eject() {
	e := c.l.Back()
	if e == nil {
		return
	}
	kv := e.Value.(keyValue[K, V])
	if c.ejectCB != nil {
		c.ejectCB(kv.Key, kv.Value)
	}
	delete(c.h, kv.Key)
	c.l.Remove(e)
}

// Upsert upserts a new key-value pair into the cache and moves it to the front of the list.
// Returns whether the key already existed in the cache.
func (c *CacheHash[K, V]) Upsert(k K, v V) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	kv := keyValue[K, V]{Key: k, Value: v}
	if e, ok := c.h[k]; ok {
		e.Value = kv
		c.l.MoveToFront(e)
		return true
	}
	if c.l.Len() >= c.maxLen {
		c.eject()
	}
	c.h[k] = c.l.PushFront(kv)
	return false
}

// Get returns the value associated with the key and whether the key was found in the cache.
// It also moves it to the front of the list.
func (c *CacheHash[K, V]) Get(k K) (v V, found bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.h[k]
	if !ok {
		return v, false
	}
	c.l.MoveToFront(e)
	return e.Value.(keyValue[K, V]).Value, true
}

// Delete removes the key-value pair from the cache and returns the value and whether the key was found.
func (c *CacheHash[K, V]) Delete(k K) (v V, found bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.h[k]
	if !ok {
		return v, false
	}
	delete(c.h, k)
	c.l.Remove(e)
	return e.Value.(keyValue[K, V]).Value, true
}

// Len returns the number of key-value pairs in the cache.
func (c *CacheHash[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.l.Len()
}

// RegisterCB registers a callback function to be called when an element is ejected from the cache.
func (c *CacheHash[K, V]) RegisterCB(newCB func(K, V)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ejectCB = newCB
}
