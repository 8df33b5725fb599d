/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package nm

import (
	"slices"

	"github.com/carverauto/netmirror/pkg/bus"
)

// cache owns every Record of one engine. Records refer to each other by
// path only. All methods require the engine lock.
type cache struct {
	engine  *Engine
	records map[bus.ObjectPath]*Record
}

func newCache(e *Engine) *cache {
	return &cache{
		engine:  e,
		records: make(map[bus.ObjectPath]*Record),
	}
}

// resolve returns the record for path, creating it on first use. The root
// path resolves to nil.
func (c *cache) resolve(path bus.ObjectPath) *Record {
	if path.IsRoot() {
		return nil
	}

	if rec, ok := c.records[path]; ok {
		return rec
	}

	rec := newRecord(c.engine, path)
	c.records[path] = rec

	return rec
}

func (c *cache) lookup(path bus.ObjectPath) *Record {
	return c.records[path]
}

// remove drops the record for path along with any pending edits.
func (c *cache) remove(path bus.ObjectPath) *Record {
	rec, ok := c.records[path]
	if !ok {
		return nil
	}

	delete(c.records, path)

	rec.removed = true
	rec.mods = nil

	return rec
}

func (c *cache) paths() []bus.ObjectPath {
	out := make([]bus.ObjectPath, 0, len(c.records))
	for p := range c.records {
		out = append(out, p)
	}

	slices.Sort(out)

	return out
}

func (c *cache) len() int {
	return len(c.records)
}

func (c *cache) reset() {
	for _, rec := range c.records {
		rec.removed = true
	}

	c.records = make(map[bus.ObjectPath]*Record)
}
