package integration

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/valter-silva-au/aipm/internal/frontmatter"
	"github.com/valter-silva-au/aipm/pkg/models"
)

// fileInboxSource implements core.InboxSource over a directory of markdown
// files with YAML front matter, one message per file.
type fileInboxSource struct {
	name string
	dir  string
}

// FileInboxConfig holds the settings for a file inbox.
type FileInboxConfig struct {
	Name string
	Dir  string
}

// NewFileInboxSource creates a file inbox reading cfg.Dir, creating the
// directory if needed.
func NewFileInboxSource(cfg FileInboxConfig) (*fileInboxSource, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("creating file inbox: name is empty")
	}
	if cfg.Dir == "" {
		return nil, fmt.Errorf("creating file inbox: dir is empty")
	}
	if err := os.MkdirAll(cfg.Dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating file inbox directory %s: %w", cfg.Dir, err)
	}
	return &fileInboxSource{name: cfg.Name, dir: cfg.Dir}, nil
}

func (s *fileInboxSource) Name() string {
	return s.name
}

// Dir returns the watched directory.
func (s *fileInboxSource) Dir() string {
	return s.dir
}

// Fetch reads every message file. Unreadable or malformed files are skipped
// so that one bad file does not hide the rest of the inbox.
func (s *fileInboxSource) Fetch() ([]models.InboxItem, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("reading inbox directory: %w", err)
	}

	var items []models.InboxItem
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}
		item, err := s.parseInboxFile(filepath.Join(s.dir, entry.Name()))
		if err != nil {
			continue
		}
		items = append(items, item)
	}
	return items, nil
}

// Archive marks a message as archived so the poller retracts its task.
func (s *fileInboxSource) Archive(itemID string) error {
	path, err := s.findInboxFile(itemID)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading inbox file: %w", err)
	}
	var item models.InboxItem
	body, err := frontmatter.Split(string(data), &item)
	if err != nil {
		return fmt.Errorf("parsing inbox file %s: %w", path, err)
	}
	item.Status = models.InboxStatusArchived

	content, err := frontmatter.Render(item, body)
	if err != nil {
		return fmt.Errorf("rendering inbox file: %w", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		return fmt.Errorf("writing inbox file: %w", err)
	}
	return nil
}

func (s *fileInboxSource) parseInboxFile(path string) (models.InboxItem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.InboxItem{}, fmt.Errorf("reading file %s: %w", path, err)
	}
	var item models.InboxItem
	body, err := frontmatter.Split(string(data), &item)
	if err != nil {
		return models.InboxItem{}, fmt.Errorf("parsing inbox file %s: %w", path, err)
	}
	item.Content = strings.TrimSpace(body)

	switch strings.ToLower(strings.TrimSpace(string(item.Status))) {
	case "archived", "processed", "done":
		item.Status = models.InboxStatusArchived
	case "read":
		item.Status = models.InboxStatusRead
	default:
		item.Status = models.InboxStatusPending
	}

	// Use the file name as the id when the front matter has none.
	if item.ID == "" {
		item.ID = strings.TrimSuffix(filepath.Base(path), ".md")
	}
	return item, nil
}

// findInboxFile locates a message by id: <id>.md first, then a scan of the
// front matter ids.
func (s *fileInboxSource) findInboxFile(itemID string) (string, error) {
	direct := filepath.Join(s.dir, itemID+".md")
	if _, err := os.Stat(direct); err == nil {
		return direct, nil
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return "", fmt.Errorf("scanning inbox for item %s: %w", itemID, err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}
		path := filepath.Join(s.dir, entry.Name())
		item, err := s.parseInboxFile(path)
		if err != nil {
			continue
		}
		if item.ID == itemID {
			return path, nil
		}
	}
	return "", fmt.Errorf("inbox item %q not found", itemID)
}
