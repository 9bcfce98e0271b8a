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
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAddOne(t *testing.T) {
	ch := New[string, string](5)
	existed := ch.Upsert("key1", "value1")
	assert.False(t, existed)
	assert.Equal(t, 1, ch.Len())
	v, ok := ch.Get("key1")
	assert.True(t, ok)
	assert.Equal(t, "value1", v)
}

func TestUpsertExisting(t *testing.T) {
	ch := New[string, int](5)
	ch.Upsert("key1", 1)
	assert.True(t, ch.Upsert("key1", 2))
	assert.Equal(t, 1, ch.Len())
	v, _ := ch.Get("key1")
	assert.Equal(t, 2, v)
}

func TestDelete(t *testing.T) {
	ch := New[string, string](5)
	ch.Upsert("key1", "value1")
	ch.Upsert("key2", "value2")
	v, ok := ch.Delete("key1")
	assert.True(t, ok)
	assert.Equal(t, "value1", v)
	assert.Equal(t, 1, ch.Len())

	v, ok = ch.Delete("key1")
	assert.False(t, ok)
	assert.Equal(t, "", v)
	assert.Equal(t, 1, ch.Len())
}

func TestEjectLeastRecentlyUsed(t *testing.T) {
	ch := New[string, string](2)
	var ejected []string
	ch.RegisterCB(func(k, _ string) { ejected = append(ejected, k) })
	ch.Upsert("key1", "value1")
	ch.Upsert("key2", "value2")
	// touching key1 makes key2 the oldest
	_, _ = ch.Get("key1")
	ch.Upsert("key3", "value3")

	assert.Equal(t, []string{"key2"}, ejected)
	assert.Equal(t, 2, ch.Len())
	_, ok := ch.Get("key2")
	assert.False(t, ok)
	_, ok = ch.Get("key1")
	assert.True(t, ok)
}

func TestMinimumSize(t *testing.T) {
	ch := New[int, int](0)
	ch.Upsert(1, 1)
	ch.Upsert(2, 2)
	assert.Equal(t, 1, ch.Len())
}

func TestConcurrentAccess(t *testing.T) {
	ch := New[int, int](64)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(base int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				ch.Upsert(base*100+j, j)
				ch.Get(base*100 + j)
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 64, ch.Len())
}
