package loader

import (
	"strings"
	"sync"
)

// prefixSet is an add-only set of name prefixes.
type prefixSet struct {
	prefixes []string
	mu       sync.RWMutex
}

func (s *prefixSet) add(prefix string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.prefixes {
		if p == prefix {
			return
		}
	}
	s.prefixes = append(s.prefixes, prefix)
}

func (s *prefixSet) matches(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.prefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}

func (s *prefixSet) list() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.prefixes...)
}
