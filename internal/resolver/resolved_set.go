package resolver

import (
	"dbdump/internal/database"
)

// Entry pairs an identifier with its connection; Connection is nil when absent
type Entry struct {
	Identifier string
	Connection *database.Connection
}

// Resolved reports whether the entry can be handed to a dump strategy
func (e Entry) Resolved() bool {
	return e.Connection.IsResolved()
}

// ResolvedSet is an insertion-ordered mapping from identifier to connection
type ResolvedSet struct {
	order   []string
	entries map[string]*database.Connection
}

// NewResolvedSet creates an empty set
func NewResolvedSet() *ResolvedSet {
	return &ResolvedSet{entries: make(map[string]*database.Connection)}
}

// Add stores conn under identifier. A repeated identifier keeps its first
// position and takes the new value.
func (s *ResolvedSet) Add(identifier string, conn *database.Connection) {
	if _, exists := s.entries[identifier]; !exists {
		s.order = append(s.order, identifier)
	}
	s.entries[identifier] = conn
}

// Get returns the connection for identifier; ok is false when the identifier is not in the set
func (s *ResolvedSet) Get(identifier string) (conn *database.Connection, ok bool) {
	conn, ok = s.entries[identifier]
	return conn, ok
}

func (s *ResolvedSet) Len() int {
	return len(s.order)
}

func (s *ResolvedSet) IsEmpty() bool {
	return len(s.order) == 0
}

// Identifiers returns the identifiers in insertion order
func (s *ResolvedSet) Identifiers() []string {
	return append([]string(nil), s.order...)
}

// Entries returns every entry in insertion order
func (s *ResolvedSet) Entries() []Entry {
	out := make([]Entry, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, Entry{Identifier: id, Connection: s.entries[id]})
	}
	return out
}

// Unresolved lists identifiers that are absent or of unknown kind
func (s *ResolvedSet) Unresolved() []string {
	var out []string
	for _, e := range s.Entries() {
		if !e.Resolved() {
			out = append(out, e.Identifier)
		}
	}
	return out
}

// Connections returns the resolved connections in insertion order
func (s *ResolvedSet) Connections() []*database.Connection {
	var out []*database.Connection
	for _, e := range s.Entries() {
		if e.Resolved() {
			out = append(out, e.Connection)
		}
	}
	return out
}
