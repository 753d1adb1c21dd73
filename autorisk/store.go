package autorisk

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/rustyeddy/margin/risk"
	"gopkg.in/yaml.v3"
)

// Store persists the configuration. Load returns Default() with a nil
// error when nothing is stored, and Default() with an error wrapping
// risk.ErrPersistenceCorrupt when the stored value is malformed. Fields
// absent from a stored value take their defaults.
type Store interface {
	Load(ctx context.Context) (Config, error)
	Save(ctx context.Context, cfg Config) error
}

type MemoryStore struct {
	mu  sync.Mutex
	cfg *Config
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (m *MemoryStore) Load(context.Context) (Config, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cfg == nil {
		return Default(), nil
	}
	return *m.cfg, nil
}

func (m *MemoryStore) Save(_ context.Context, cfg Config) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cfg = &cfg
	return nil
}

// FileStore keeps the configuration in a YAML document keyed by Key.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore { return &FileStore{path: path} }

func (s *FileStore) Load(context.Context) (Config, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return Default(), fmt.Errorf("read %s: %w", s.path, err)
	}

	doc := map[string]yaml.Node{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Default(), fmt.Errorf("parse %s: %v: %w", s.path, err, risk.ErrPersistenceCorrupt)
	}
	node, ok := doc[Key]
	if !ok {
		return Default(), nil
	}
	if node.ShortTag() == "!!null" {
		return checkLoaded(nil)
	}

	// Fields missing from the stored value keep their defaults.
	cfg := Default()
	if err := node.Decode(&cfg); err != nil {
		return Default(), fmt.Errorf("decode %s: %v: %w", Key, err, risk.ErrPersistenceCorrupt)
	}
	return checkLoaded(&cfg)
}

// Save writes to a temp file and renames it over the old one so readers
// never observe a partial document.
func (s *FileStore) Save(_ context.Context, cfg Config) error {
	data, err := yaml.Marshal(map[string]Config{Key: cfg})
	if err != nil {
		return fmt.Errorf("marshal autorisk config: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".autorisk-*.yaml")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace %s: %w", s.path, err)
	}
	return nil
}

func checkLoaded(cfg *Config) (Config, error) {
	if cfg == nil {
		return Default(), fmt.Errorf("empty value for %s: %w", Key, risk.ErrPersistenceCorrupt)
	}
	if err := cfg.Validate(); err != nil {
		return Default(), fmt.Errorf("stored %s: %v: %w", Key, err, risk.ErrPersistenceCorrupt)
	}
	return *cfg, nil
}
