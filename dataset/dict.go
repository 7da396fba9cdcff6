// Copyright 2025 cinematch Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package dataset

import "sync"

// NotId is returned by Id for identifiers that have never been added.
const NotId = int32(-1)

// Dict maps opaque external identifiers to dense internal indices. The mapping is
// append-only: once assigned, an index is never reused or changed for the process
// lifetime. All methods are safe for concurrent use.
type Dict struct {
	mu      sync.RWMutex
	indices map[string]int32
	names   []string
}

// NewDict creates an empty Dict.
func NewDict() *Dict {
	return &Dict{indices: make(map[string]int32)}
}

// Add returns the index of name, assigning the next free index if unseen.
func (d *Dict) Add(name string) int32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	if index, exist := d.indices[name]; exist {
		return index
	}
	index := int32(len(d.names))
	d.indices[name] = index
	d.names = append(d.names, name)
	return index
}

// Id returns the index of name, or NotId if unseen. It never assigns.
func (d *Dict) Id(name string) int32 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if index, exist := d.indices[name]; exist {
		return index
	}
	return NotId
}

// Name returns the identifier assigned to index.
func (d *Dict) Name(index int32) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if index < 0 || int(index) >= len(d.names) {
		return "", false
	}
	return d.names[index], true
}

// Count returns the number of assigned indices.
func (d *Dict) Count() int32 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return int32(len(d.names))
}
