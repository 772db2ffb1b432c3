package llm

import (
	"fmt"
	"sort"
	"sync"
)

// Registry resolves backend ids to constructed clients. Construction is
// lazy and clients are cached, so repeated lookups share connections.
type Registry struct {
	mu      sync.Mutex
	configs map[string]Config
	clients map[string]Client
	opts    []Option
}

// NewRegistry builds a registry over the configured backends. Options are
// applied to every client it constructs.
func NewRegistry(configs []Config, opts ...Option) *Registry {
	byID := make(map[string]Config, len(configs))
	for _, cfg := range configs {
		byID[cfg.ID] = cfg
	}
	return &Registry{
		configs: byID,
		clients: make(map[string]Client),
		opts:    opts,
	}
}

// Client returns the client for a backend id, constructing it on first use.
func (r *Registry) Client(id string) (Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if client, ok := r.clients[id]; ok {
		return client, nil
	}
	cfg, ok := r.configs[id]
	if !ok {
		return nil, fmt.Errorf("backend %q not configured", id)
	}
	client, err := New(cfg, r.opts...)
	if err != nil {
		return nil, err
	}
	r.clients[id] = client
	return client, nil
}

// IDs returns the configured backend ids in sorted order.
func (r *Registry) IDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.configs))
	for id := range r.configs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Config returns the configuration for a backend id.
func (r *Registry) Config(id string) (Config, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cfg, ok := r.configs[id]
	return cfg, ok
}
