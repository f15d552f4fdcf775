package storage

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/valter-silva-au/aipm/internal/frontmatter"
	"github.com/valter-silva-au/aipm/pkg/models"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

const (
	tasksDirName    = "tasks"
	bucketsFileName = "buckets.yaml"
	lockFileName    = ".lock"
	maxSlugLen      = 50
)

// Board is the persisted form of the whole board.
type Board struct {
	Tasks   []models.Task
	Buckets []models.Bucket
}

// BoardManager loads and saves the board under a data directory.
type BoardManager interface {
	Load() (Board, error)
	Save(b Board) error
}

// BucketsFile is the structure of buckets.yaml.
type BucketsFile struct {
	Version string          `yaml:"version"`
	Buckets []models.Bucket `yaml:"buckets"`
}

type fileBoardManager struct {
	dataDir string
	log     *zap.Logger
}

// NewBoardManager creates a BoardManager storing one markdown file per task
// in dataDir/tasks and the bucket list in dataDir/buckets.yaml.
func NewBoardManager(dataDir string, log *zap.Logger) BoardManager {
	if log == nil {
		log = zap.NewNop()
	}
	return &fileBoardManager{dataDir: dataDir, log: log}
}

func (m *fileBoardManager) tasksDir() string {
	return filepath.Join(m.dataDir, tasksDirName)
}

// Load reads every task file and the bucket list. Missing files yield an
// empty board; malformed task files are skipped with a warning.
func (m *fileBoardManager) Load() (Board, error) {
	var b Board

	data, err := os.ReadFile(filepath.Join(m.dataDir, bucketsFileName))
	switch {
	case err == nil:
		var bf BucketsFile
		if err := yaml.Unmarshal(data, &bf); err != nil {
			return Board{}, fmt.Errorf("parsing %s: %w", bucketsFileName, err)
		}
		b.Buckets = bf.Buckets
	case !os.IsNotExist(err):
		return Board{}, fmt.Errorf("reading %s: %w", bucketsFileName, err)
	}

	entries, err := os.ReadDir(m.tasksDir())
	if err != nil {
		if os.IsNotExist(err) {
			return b, nil
		}
		return Board{}, fmt.Errorf("reading tasks directory: %w", err)
	}

	byID := make(map[string]int)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}
		path := filepath.Join(m.tasksDir(), entry.Name())
		t, err := readTaskFile(path)
		if err != nil {
			m.log.Warn("skipping malformed task file", zap.String("path", path), zap.Error(err))
			continue
		}
		key := t.ID.String()
		if i, dup := byID[key]; dup {
			m.log.Warn("duplicate task id on disk", zap.String("id", key), zap.String("path", path))
			if t.UpdatedAt.After(b.Tasks[i].UpdatedAt) {
				b.Tasks[i] = t
			}
			continue
		}
		byID[key] = len(b.Tasks)
		b.Tasks = append(b.Tasks, t)
	}
	return b, nil
}

// Save writes the board atomically per file, skipping unchanged files and
// removing files of tasks that no longer exist.
func (m *fileBoardManager) Save(b Board) error {
	if err := os.MkdirAll(m.tasksDir(), 0o750); err != nil {
		return fmt.Errorf("creating tasks directory: %w", err)
	}
	unlock, err := lockFile(filepath.Join(m.dataDir, lockFileName))
	if err != nil {
		return err
	}
	defer func() { _ = unlock() }()

	bf, err := yaml.Marshal(BucketsFile{Version: "1", Buckets: b.Buckets})
	if err != nil {
		return fmt.Errorf("marshaling buckets: %w", err)
	}
	if err := writeIfChanged(filepath.Join(m.dataDir, bucketsFileName), bf); err != nil {
		return fmt.Errorf("writing %s: %w", bucketsFileName, err)
	}

	keep := make(map[string]bool, len(b.Tasks))
	for _, t := range b.Tasks {
		name := TaskFileName(t)
		keep[name] = true
		content, err := renderTask(t)
		if err != nil {
			return fmt.Errorf("rendering task %s: %w", t.ShortID(), err)
		}
		if err := writeIfChanged(filepath.Join(m.tasksDir(), name), []byte(content)); err != nil {
			return fmt.Errorf("writing task %s: %w", t.ShortID(), err)
		}
	}

	entries, err := os.ReadDir(m.tasksDir())
	if err != nil {
		return fmt.Errorf("reading tasks directory: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") || keep[entry.Name()] {
			continue
		}
		if err := os.Remove(filepath.Join(m.tasksDir(), entry.Name())); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing stale task file %s: %w", entry.Name(), err)
		}
	}
	return nil
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// Slug lowercases title and joins its alphanumeric runs with hyphens.
func Slug(title string) string {
	s := strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(title), "-"), "-")
	if len(s) > maxSlugLen {
		s = strings.TrimRight(s[:maxSlugLen], "-")
	}
	if s == "" {
		s = "task"
	}
	return s
}

// TaskFileName returns the file name used for t.
func TaskFileName(t models.Task) string {
	return t.ShortID() + "-" + Slug(t.Title) + ".md"
}

func renderTask(t models.Task) (string, error) {
	return frontmatter.Render(t, t.Description)
}

func readTaskFile(path string) (models.Task, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.Task{}, err
	}
	var t models.Task
	body, err := frontmatter.Split(string(data), &t)
	if err != nil {
		return models.Task{}, err
	}
	if t.Title == "" {
		return models.Task{}, fmt.Errorf("task has no title")
	}
	t.Description = strings.TrimRight(body, "\n")
	return t, nil
}

// writeIfChanged writes data to path via a temp file and rename, unless the
// file already holds exactly data.
func writeIfChanged(path string, data []byte) error {
	if existing, err := os.ReadFile(path); err == nil && bytes.Equal(existing, data) {
		return nil
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}
