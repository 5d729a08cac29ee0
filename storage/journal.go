package storage

import (
	"sort"
)

// Journal buffers writes on top of a base database. Reads see the buffered
// writes first. Nothing reaches the base until Commit, and Discard drops the
// buffer entirely.
type Journal struct {
	base    Database
	writes  map[string][]byte
	deleted map[string]struct{}
}

// NewJournal creates an empty journal over base.
func NewJournal(base Database) *Journal {
	return &Journal{
		base:    base,
		writes:  make(map[string][]byte),
		deleted: make(map[string]struct{}),
	}
}

// Get returns the buffered value for key, falling back to the base database.
func (j *Journal) Get(key []byte) ([]byte, error) {
	k := string(key)
	if _, gone := j.deleted[k]; gone {
		return nil, ErrNotFound
	}
	if v, ok := j.writes[k]; ok {
		return append([]byte(nil), v...), nil
	}
	return j.base.Get(key)
}

// Has reports whether key is visible through the journal.
func (j *Journal) Has(key []byte) (bool, error) {
	k := string(key)
	if _, gone := j.deleted[k]; gone {
		return false, nil
	}
	if _, ok := j.writes[k]; ok {
		return true, nil
	}
	return j.base.Has(key)
}

// Put buffers a write.
func (j *Journal) Put(key, value []byte) error {
	k := string(key)
	delete(j.deleted, k)
	j.writes[k] = append([]byte(nil), value...)
	return nil
}

// Delete buffers a removal.
func (j *Journal) Delete(key []byte) error {
	k := string(key)
	delete(j.writes, k)
	j.deleted[k] = struct{}{}
	return nil
}

// Len reports the number of buffered operations.
func (j *Journal) Len() int { return len(j.writes) + len(j.deleted) }

// Commit flushes the buffered operations to the base database as a single
// batch and clears the journal.
func (j *Journal) Commit() error {
	if j.Len() == 0 {
		return nil
	}
	batch := NewBatch()
	for _, k := range sortedKeys(j.deleted) {
		batch.Delete([]byte(k))
	}
	puts := make([]string, 0, len(j.writes))
	for k := range j.writes {
		puts = append(puts, k)
	}
	sort.Strings(puts)
	for _, k := range puts {
		batch.Put([]byte(k), j.writes[k])
	}
	if err := j.base.Write(batch); err != nil {
		return err
	}
	j.Discard()
	return nil
}

// Discard drops every buffered operation.
func (j *Journal) Discard() {
	j.writes = make(map[string][]byte)
	j.deleted = make(map[string]struct{})
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
