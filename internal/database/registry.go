package database

import (
	"fmt"
)

// Registry is the read-only, ordered set of known connections
type Registry struct {
	order []string
	byID  map[string]*Connection
}

// NewRegistry builds a registry; identifiers must be unique
func NewRegistry(conns ...*Connection) (*Registry, error) {
	r := &Registry{byID: make(map[string]*Connection, len(conns))}
	for _, conn := range conns {
		if conn == nil {
			return nil, fmt.Errorf("registry: nil connection")
		}
		id := conn.Identifier()
		if _, exists := r.byID[id]; exists {
			return nil, fmt.Errorf("registry: duplicate connection %q", id)
		}
		r.order = append(r.order, id)
		r.byID[id] = conn
	}
	return r, nil
}

// RegistryFromConfig builds connections from configuration entries, in order
func RegistryFromConfig(entries []ConnectionConfig) (*Registry, error) {
	conns := make([]*Connection, 0, len(entries))
	for _, entry := range entries {
		conn, err := NewConnection(entry)
		if err != nil {
			return nil, err
		}
		conns = append(conns, conn)
	}
	return NewRegistry(conns...)
}

// Lookup finds a connection by exact identifier
func (r *Registry) Lookup(identifier string) (*Connection, bool) {
	if r == nil {
		return nil, false
	}
	conn, ok := r.byID[identifier]
	return conn, ok
}

// All returns every connection in registry order
func (r *Registry) All() []*Connection {
	if r == nil {
		return nil
	}
	out := make([]*Connection, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

// Identifiers returns the identifiers in registry order
func (r *Registry) Identifiers() []string {
	if r == nil {
		return nil
	}
	return append([]string(nil), r.order...)
}

func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.order)
}
