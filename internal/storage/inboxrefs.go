package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

const inboxRefsFileName = "inbox_refs.yaml"

// InboxRefsFile maps external inbox refs to the task created for each.
type InboxRefsFile struct {
	Version string               `yaml:"version"`
	Refs    map[string]uuid.UUID `yaml:"refs"`
}

// InboxRefManager persists the poller's ref map.
type InboxRefManager interface {
	Load() (map[string]uuid.UUID, error)
	Save(refs map[string]uuid.UUID) error
}

type fileInboxRefManager struct {
	path string
}

// NewInboxRefManager creates an InboxRefManager at dataDir/inbox_refs.yaml.
func NewInboxRefManager(dataDir string) InboxRefManager {
	return &fileInboxRefManager{path: filepath.Join(dataDir, inboxRefsFileName)}
}

func (m *fileInboxRefManager) Load() (map[string]uuid.UUID, error) {
	refs := make(map[string]uuid.UUID)
	data, err := os.ReadFile(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			return refs, nil
		}
		return nil, fmt.Errorf("reading %s: %w", inboxRefsFileName, err)
	}
	var f InboxRefsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", inboxRefsFileName, err)
	}
	for k, v := range f.Refs {
		refs[k] = v
	}
	return refs, nil
}

func (m *fileInboxRefManager) Save(refs map[string]uuid.UUID) error {
	if err := os.MkdirAll(filepath.Dir(m.path), 0o750); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}
	data, err := yaml.Marshal(InboxRefsFile{Version: "1", Refs: refs})
	if err != nil {
		return fmt.Errorf("marshaling inbox refs: %w", err)
	}
	if err := writeIfChanged(m.path, data); err != nil {
		return fmt.Errorf("writing %s: %w", inboxRefsFileName, err)
	}
	return nil
}
