package plugin

import (
	"fmt"
	"sort"
	"sync"
)

// Registry holds all registered pieces together with the connection
// each one executes with.
type Registry struct {
	mu          sync.RWMutex
	connectors  map[string]Connector
	connections map[string]Connection
}

// NewRegistry creates a new empty piece registry.
func NewRegistry() *Registry {
	return &Registry{
		connectors:  make(map[string]Connector),
		connections: make(map[string]Connection),
	}
}

// Register adds a piece to the registry.
func (r *Registry) Register(c Connector) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := c.Name()
	if _, exists := r.connectors[name]; exists {
		return fmt.Errorf("piece %q already registered", name)
	}
	r.connectors[name] = c
	return nil
}

// Connect stores the connection used when executing actions of piece.
// It replaces any connection stored before.
func (r *Registry) Connect(piece string, conn Connection) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.connectors[piece]; !ok {
		return fmt.Errorf("piece %q not registered", piece)
	}
	r.connections[piece] = conn
	return nil
}

// Connection returns the stored connection for piece. Pieces without
// a stored connection get an empty one.
func (r *Registry) Connection(piece string) Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if conn, ok := r.connections[piece]; ok {
		return conn
	}
	return Connection{}
}

// Get returns a piece by name.
func (r *Registry) Get(name string) (Connector, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.connectors[name]
	return c, ok
}

// Trigger looks up a trigger by piece and trigger name.
func (r *Registry) Trigger(piece, name string) (Trigger, bool) {
	c, ok := r.Get(piece)
	if !ok {
		return nil, false
	}
	return FindTrigger(c, name)
}

// List returns the names of all registered pieces, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.connectors))
	for name := range r.connectors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Has checks whether a piece is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.connectors[name]
	return ok
}
