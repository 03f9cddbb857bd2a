package storage

import (
	cmap "github.com/orcaman/concurrent-map/v2"
)

// Store is a node-local replica map. Absent keys read as "".
type Store struct {
	data cmap.ConcurrentMap[string, string]
}

func NewStore() *Store {
	return &Store{
		data: cmap.New[string](),
	}
}

func (s *Store) Get(key string) (string, bool) {
	return s.data.Get(key)
}

func (s *Store) Set(key, value string) {
	s.data.Set(key, value)
}

// Swap stores value and returns what was there before.
func (s *Store) Swap(key, value string) (prev string, existed bool) {
	s.data.Upsert(key, value, func(exist bool, cur string, next string) string {
		prev, existed = cur, exist
		return next
	})
	return prev, existed
}

// SetIfEmpty stores value only when the key is absent or holds "".
func (s *Store) SetIfEmpty(key, value string) bool {
	var stored bool
	s.data.Upsert(key, value, func(exist bool, cur string, next string) string {
		if exist && cur != "" {
			return cur
		}
		stored = true
		return next
	})
	return stored
}

func (s *Store) Delete(key string) {
	s.data.Remove(key)
}

func (s *Store) Len() int {
	return s.data.Count()
}

func (s *Store) Data() map[string]string {
	return s.data.Items()
}
