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

package ipset

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/zmap/go-iptree/blacklist"
)

// Set is a thread-safe set of IPv4 networks backed by a radix tree.
type Set struct {
	tree *blacklist.Blacklist
	lock *sync.RWMutex
}

func New() *Set {
	return &Set{
		tree: blacklist.New(),
		lock: &sync.RWMutex{},
	}
}

// FromCIDRs builds a set holding every given network.
func FromCIDRs(cidrs ...string) (*Set, error) {
	s := New()
	for _, c := range cidrs {
		if err := s.Add(c); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Set) Add(cidr string) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if err := s.tree.AddEntry(cidr); err != nil {
		return errors.Wrapf(err, "invalid network %q", cidr)
	}
	return nil
}

// ParseFromFile adds one network per line of the file at path.
func (s *Set) ParseFromFile(path string) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.tree.ParseFromFile(path)
}

// Contains reports whether ip falls in one of the networks of the set.
func (s *Set) Contains(ip string) (bool, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.tree.IsBlacklisted(ip)
}
