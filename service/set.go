package service

import (
	"fmt"
	"sync"
)

// Set resolves inbound (service id, method id) pairs to methods.
// It is safe for concurrent use.
type Set struct {
	mu       sync.RWMutex
	services map[uint32]*Service
}

func NewSet(services ...*Service) (*Set, error) {
	s := &Set{services: make(map[uint32]*Service, len(services))}
	for _, svc := range services {
		if err := s.Add(svc); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Add registers svc. Adding a service whose id is taken by a different
// service is an error; re-adding the same service is a no-op.
func (s *Set) Add(svc *Service) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.services[svc.id]; ok {
		if existing == svc {
			return nil
		}
		return fmt.Errorf("service: %s and %s have the same id %08x", existing.name, svc.name, svc.id)
	}
	s.services[svc.id] = svc
	return nil
}

// Lookup returns the method for the given ids.
func (s *Set) Lookup(serviceID, methodID uint32) (*Method, bool) {
	s.mu.RLock()
	svc, ok := s.services[serviceID]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	m := svc.MethodByID(methodID)
	return m, m != nil
}

func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.services)
}
