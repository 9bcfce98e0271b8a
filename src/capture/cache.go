/*
 * ZDNS Copyright 2024 Regents of the University of Michigan
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

package capture

import (
	"path/filepath"

	"github.com/zmap/zverify/src/internal/cachehash"
	"github.com/zmap/zverify/src/verify"
)

// FileCache keeps recently parsed capture files so scenarios sharing a capture parse it once.
// Results are shared between callers and must not be modified.
type FileCache struct {
	cache *cachehash.CacheHash[string, *verify.Result]
}

func NewFileCache(size int) *FileCache {
	return &FileCache{cache: cachehash.New[string, *verify.Result](size)}
}

// ParseDigFile behaves like the package level ParseDigFile.
func (c *FileCache) ParseDigFile(path string) (*verify.Result, error) {
	key := filepath.Clean(path)
	if res, ok := c.cache.Get(key); ok {
		return res, nil
	}
	res, err := ParseDigFile(path)
	if err != nil {
		return nil, err
	}
	c.cache.Upsert(key, res)
	return res, nil
}
