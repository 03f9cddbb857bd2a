package storage

import (
	"capkv/internal/metrics"
)

type Service struct {
	store *Store
}

func NewService() *Service {
	return &Service{store: NewStore()}
}

func (s *Service) Get(key string) (string, bool) {
	metrics.StorageOperationsTotal.WithLabelValues("get").Inc()
	return s.store.Get(key)
}

// Value returns the stored value or "" when the key is unknown.
func (s *Service) Value(key string) string {
	v, _ := s.Get(key)
	return v
}

func (s *Service) Set(key, value string) {
	metrics.StorageOperationsTotal.WithLabelValues("set").Inc()
	s.store.Set(key, value)
}

func (s *Service) Swap(key, value string) (string, bool) {
	metrics.StorageOperationsTotal.WithLabelValues("set").Inc()
	return s.store.Swap(key, value)
}

func (s *Service) SetIfEmpty(key, value string) bool {
	metrics.StorageOperationsTotal.WithLabelValues("set_if_empty").Inc()
	return s.store.SetIfEmpty(key, value)
}

func (s *Service) Delete(key string) {
	metrics.StorageOperationsTotal.WithLabelValues("delete").Inc()
	s.store.Delete(key)
}

// Restore puts back a value returned by Swap, deleting the key if it did
// not exist before.
func (s *Service) Restore(key, prev string, existed bool) {
	if !existed {
		s.Delete(key)
		return
	}
	s.Set(key, prev)
}

func (s *Service) Len() int {
	return s.store.Len()
}

func (s *Service) Snapshot() map[string]string {
	return s.store.Data()
}
