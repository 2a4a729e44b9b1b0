package roster

import (
	"fmt"
	"strings"
	"sync"
)

// EmptyPlaceholder stands in for the roster when no member is registered
const EmptyPlaceholder = "No team members registered yet."

// Member of the user's team
type Member struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

// Store holds the current roster; safe for concurrent use
type Store struct {
	mu      sync.RWMutex
	members []Member
}

// NewStore creates a store seeded with members
func NewStore(members []Member) *Store {
	s := &Store{}
	s.Replace(members)
	return s
}

// Members returns a copy of the roster
func (s *Store) Members() []Member {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Member, len(s.members))
	copy(out, s.members)
	return out
}

// Replace swaps the whole roster. Members without a name are skipped.
func (s *Store) Replace(members []Member) {
	kept := make([]Member, 0, len(members))
	for _, m := range members {
		m.Name = strings.TrimSpace(m.Name)
		m.Role = strings.TrimSpace(m.Role)
		if m.Name == "" {
			continue
		}
		kept = append(kept, m)
	}

	s.mu.Lock()
	s.members = kept
	s.mu.Unlock()
}

// Parse reads "Name:Role;Name:Role". A missing role is left empty.
func Parse(spec string) ([]Member, error) {
	var members []Member
	for _, entry := range strings.Split(spec, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		name, role, _ := strings.Cut(entry, ":")
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("roster entry %q has no name", entry)
		}
		members = append(members, Member{Name: name, Role: strings.TrimSpace(role)})
	}
	return members, nil
}

// Format renders members as "Name (Role), Name (Role)"
func Format(members []Member) string {
	if len(members) == 0 {
		return EmptyPlaceholder
	}
	parts := make([]string, len(members))
	for i, m := range members {
		parts[i] = fmt.Sprintf("%s (%s)", m.Name, m.Role)
	}
	return strings.Join(parts, ", ")
}
