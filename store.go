package main

import (
	"sync"

	"github.com/jinzhu/copier"
	"github.com/pkg/errors"
	"github.com/tidwall/btree"
)

// Collection holds the records of one endpoint in memory, ordered by id.
// Ids come from a monotonic counter, so id order is also insertion order.
type Collection struct {
	mu      sync.RWMutex
	records *btree.BTree
	nextID  int64
}

type entry struct {
	id  int64
	rec Record
}

func byID(a, b interface{}) bool {
	return a.(*entry).id < b.(*entry).id
}

// NewCollection creates a Collection loaded with seed records. Seeds keep the
// id they carry; seeds without one are numbered after the highest given id.
// The counter never starts below 1 so that 0 stays free for a seed record.
func NewCollection(seed ...Record) *Collection {
	c := &Collection{
		records: btree.NewNonConcurrent(byID),
		nextID:  1,
	}
	for _, rec := range seed {
		if id := rec.ID(); id >= 0 && id >= c.nextID {
			c.nextID = id + 1
		}
	}
	for _, rec := range seed {
		id := rec.ID()
		if id < 0 {
			id = c.nextID
			c.nextID++
		}
		stored := cloneRecord(rec)
		stored[idField] = id
		c.records.Set(&entry{id: id, rec: stored})
	}
	return c
}

// Len returns the number of records.
func (c *Collection) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.records.Len()
}

// NextID returns the id the next created record will get.
func (c *Collection) NextID() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.nextID
}

// List returns copies of all records in id order.
func (c *Collection) List() []Record {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Record, 0, c.records.Len())
	c.records.Ascend(nil, func(i interface{}) bool {
		out = append(out, cloneRecord(i.(*entry).rec))
		return true
	})
	return out
}

// Get returns a copy of the record with the given id.
func (c *Collection) Get(id int64) (Record, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, err := c.lookup(id)
	if err != nil {
		return nil, err
	}
	return cloneRecord(e.rec), nil
}

// Create stores rec under the next counter value, overwriting any id it carries.
func (c *Collection) Create(rec Record) Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID
	c.nextID++
	stored := cloneRecord(rec)
	stored[idField] = id
	c.records.Set(&entry{id: id, rec: stored})
	return cloneRecord(stored)
}

// Replace swaps the record with id for rec. Fields named in keep are carried
// over from the old record, or dropped when the old record did not have them.
func (c *Collection) Replace(id int64, rec Record, keep ...string) (Record, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, err := c.lookup(id)
	if err != nil {
		return nil, err
	}
	next := cloneRecord(rec)
	for _, field := range keep {
		if v, ok := e.rec[field]; ok {
			next[field] = v
		} else {
			delete(next, field)
		}
	}
	next[idField] = id
	e.rec = next
	return cloneRecord(next), nil
}

// Patch merges fields into the record with id. An id in the patch is ignored.
func (c *Collection) Patch(id int64, fields Record) (Record, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, err := c.lookup(id)
	if err != nil {
		return nil, err
	}
	for k, v := range fields {
		if k == idField {
			continue
		}
		e.rec[k] = v
	}
	return cloneRecord(e.rec), nil
}

// Delete removes the record with id.
func (c *Collection) Delete(id int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.records.Delete(&entry{id: id}) == nil {
		return errors.Wrapf(ErrNotFound, "record %d", id)
	}
	return nil
}

// lookup must be called with c.mu held.
func (c *Collection) lookup(id int64) (*entry, error) {
	found := c.records.Get(&entry{id: id})
	if found == nil {
		return nil, errors.Wrapf(ErrNotFound, "record %d", id)
	}
	return found.(*entry), nil
}

// cloneRecord makes a top-level copy so callers never share the stored map.
// Nested values are shared; nothing mutates them in place.
func cloneRecord(r Record) Record {
	out := make(Record, len(r))
	if err := copier.Copy(&out, r); err != nil {
		// copier only fails on mismatched kinds; fall back to a plain copy.
		for k, v := range r {
			out[k] = v
		}
	}
	return out
}
