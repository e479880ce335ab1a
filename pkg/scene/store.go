package scene

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/matzehuels/domainstack/pkg/errors"
)

// Summary describes a stored scene without its layers.
type Summary struct {
	ID        string    `json:"id" bson:"_id"`
	Name      string    `json:"name" bson:"name"`
	Layers    int       `json:"layers" bson:"-"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

// Store persists scenes.
type Store interface {
	// Get returns the scene with id, or a NOT_FOUND error.
	Get(ctx context.Context, id string) (*Scene, error)

	// Put stores s, replacing any scene with the same ID.
	Put(ctx context.Context, s *Scene) error

	// Delete removes a scene. Deleting a missing scene is not an error.
	Delete(ctx context.Context, id string) error

	// List returns every stored scene, most recently updated first.
	List(ctx context.Context) ([]Summary, error)

	// Close releases any held connections.
	Close() error
}

// FindByName returns the most recently updated scene called name.
func FindByName(ctx context.Context, st Store, name string) (*Scene, error) {
	all, err := st.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, s := range all {
		if s.Name == name {
			return st.Get(ctx, s.ID)
		}
	}
	return nil, errors.New(errors.ErrCodeNotFound, "no scene named %q", name)
}

// FileStore keeps one JSON file per scene.
type FileStore struct {
	mu      sync.RWMutex
	baseDir string
}

// NewFileStore creates a file store under baseDir. If baseDir is empty it
// defaults to $XDG_CONFIG_HOME/domainstack/scenes (or ~/.config/...).
func NewFileStore(baseDir string) (*FileStore, error) {
	if baseDir == "" {
		dir, err := DefaultDir()
		if err != nil {
			return nil, err
		}
		baseDir = dir
	}
	if err := os.MkdirAll(baseDir, 0o700); err != nil {
		return nil, fmt.Errorf("create scene dir: %w", err)
	}
	return &FileStore{baseDir: baseDir}, nil
}

// DefaultDir returns the default scene directory.
func DefaultDir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "domainstack", "scenes"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".config", "domainstack", "scenes"), nil
}

// Dir returns the directory scenes are stored in.
func (s *FileStore) Dir() string { return s.baseDir }

func (s *FileStore) scenePath(id string) (string, error) {
	if _, err := uuid.Parse(id); err != nil {
		return "", errors.New(errors.ErrCodeInvalidInput, "invalid scene id %q", id)
	}
	return filepath.Join(s.baseDir, id+".json"), nil
}

func (s *FileStore) Get(_ context.Context, id string) (*Scene, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	path, err := s.scenePath(id)
	if err != nil {
		return nil, err
	}
	return readScene(path)
}

func readScene(path string) (*Scene, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New(errors.ErrCodeNotFound, "scene %s not found", filepath.Base(path))
		}
		return nil, fmt.Errorf("read scene file: %w", err)
	}
	var sc Scene
	if err := json.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("parse scene: %w", err)
	}
	if err := sc.restore(); err != nil {
		return nil, err
	}
	return &sc, nil
}

func (s *FileStore) Put(_ context.Context, sc *Scene) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path, err := s.scenePath(sc.ID)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(sc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal scene: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write scene file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("write scene file: %w", err)
	}
	return nil
}

func (s *FileStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path, err := s.scenePath(id)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove scene file: %w", err)
	}
	return nil
}

func (s *FileStore) List(_ context.Context) ([]Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return nil, fmt.Errorf("read scene dir: %w", err)
	}
	var out []Summary
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		sc, err := readScene(filepath.Join(s.baseDir, e.Name()))
		if err != nil {
			continue
		}
		out = append(out, Summary{ID: sc.ID, Name: sc.Name, Layers: sc.Len(), UpdatedAt: sc.UpdatedAt})
	}
	sortSummaries(out)
	return out, nil
}

func (s *FileStore) Close() error { return nil }

func sortSummaries(s []Summary) {
	slices.SortFunc(s, func(a, b Summary) int {
		return cmp.Or(b.UpdatedAt.Compare(a.UpdatedAt), cmp.Compare(a.ID, b.ID))
	})
}

var _ Store = (*FileStore)(nil)
