package core

import (
	"fmt"
	"slices"
	"sync"

	"github.com/valter-silva-au/aipm/pkg/models"
)

// InboxSource is an external inbox the background poller reads from.
type InboxSource interface {
	// Name returns the source's unique name. It prefixes external refs.
	Name() string

	// Fetch returns every item currently in the inbox, pending or not.
	Fetch() ([]models.InboxItem, error)
}

// SourcedItem is an inbox item tagged with the source it came from.
type SourcedItem struct {
	Source string
	Item   models.InboxItem
}

// Ref returns the external reference used to map the item to a task.
func (s SourcedItem) Ref() string {
	return s.Source + ":" + s.Item.ID
}

// InboxRegistry holds the configured inbox sources.
type InboxRegistry interface {
	Register(src InboxSource) error
	Sources() []InboxSource
	// FetchAll reads every source. A failing source aborts the fetch so
	// that the poller never mistakes a read error for retracted items.
	FetchAll() ([]SourcedItem, error)
}

type inboxRegistry struct {
	mu      sync.RWMutex
	sources map[string]InboxSource
}

// NewInboxRegistry creates an empty InboxRegistry.
func NewInboxRegistry() InboxRegistry {
	return &inboxRegistry{sources: make(map[string]InboxSource)}
}

func (r *inboxRegistry) Register(src InboxSource) error {
	if src == nil {
		return fmt.Errorf("registering inbox source: source is nil")
	}
	name := src.Name()
	if name == "" {
		return fmt.Errorf("registering inbox source: name is empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sources[name]; exists {
		return fmt.Errorf("registering inbox source: %q already registered", name)
	}
	r.sources[name] = src
	return nil
}

func (r *inboxRegistry) Sources() []InboxSource {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.sources))
	for n := range r.sources {
		names = append(names, n)
	}
	slices.Sort(names)
	out := make([]InboxSource, len(names))
	for i, n := range names {
		out[i] = r.sources[n]
	}
	return out
}

func (r *inboxRegistry) FetchAll() ([]SourcedItem, error) {
	var all []SourcedItem
	for _, src := range r.Sources() {
		items, err := src.Fetch()
		if err != nil {
			return nil, fmt.Errorf("fetching from inbox %q: %w", src.Name(), err)
		}
		for _, it := range items {
			all = append(all, SourcedItem{Source: src.Name(), Item: it})
		}
	}
	return all, nil
}
