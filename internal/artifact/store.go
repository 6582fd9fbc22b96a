// Package artifact stores failure screenshots on disk with a JSON sidecar
// per image.
package artifact

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

var uuidRe = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

// ErrNotFound is returned when no artifact has the requested id.
var ErrNotFound = errors.New("artifact not found")

// ErrInvalidID is returned for ids that are not UUIDs.
var ErrInvalidID = errors.New("invalid artifact id")

// Meta describes a stored artifact.
type Meta struct {
	ID        string    `json:"id"`
	RunID     string    `json:"run_id"`
	Check     string    `json:"check"`
	Format    string    `json:"format"`
	Width     int       `json:"width,omitempty"`
	Height    int       `json:"height,omitempty"`
	SizeBytes int       `json:"size_bytes"`
	CreatedAt time.Time `json:"created_at"`
}

// Store manages artifact files in one directory.
type Store struct {
	dir string
	mu  sync.RWMutex
}

// NewStore creates a Store and ensures the directory exists.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("artifact store: mkdir %s: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the directory artifacts are written to.
func (s *Store) Dir() string { return s.dir }

func (s *Store) validateID(id string) error {
	if !uuidRe.MatchString(id) {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return nil
}

// SaveScreenshot stores a PNG captured for a failing check and returns the
// new artifact id.
func (s *Store) SaveScreenshot(_ context.Context, runID, check string, data []byte) (string, error) {
	meta := Meta{
		ID:        uuid.NewString(),
		RunID:     runID,
		Check:     check,
		Format:    "png",
		SizeBytes: len(data),
		CreatedAt: time.Now().UTC(),
	}
	if cfg, err := png.DecodeConfig(bytes.NewReader(data)); err == nil {
		meta.Width, meta.Height = cfg.Width, cfg.Height
	}
	if err := s.Save(meta, data); err != nil {
		return "", err
	}
	slog.Debug("artifact saved", "id", meta.ID, "run_id", runID, "check", check, "bytes", len(data))
	return meta.ID, nil
}

// Save writes both the image file and metadata sidecar.
func (s *Store) Save(meta Meta, data []byte) error {
	if err := s.validateID(meta.ID); err != nil {
		return err
	}
	if meta.Format == "" {
		return fmt.Errorf("artifact store: format is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	imgPath := filepath.Join(s.dir, meta.ID+"."+meta.Format)
	jsonPath := filepath.Join(s.dir, meta.ID+".json")

	if err := os.WriteFile(imgPath, data, 0o644); err != nil {
		return fmt.Errorf("artifact store: write image: %w", err)
	}

	raw, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		_ = os.Remove(imgPath)
		return fmt.Errorf("artifact store: marshal meta: %w", err)
	}
	if err := os.WriteFile(jsonPath, raw, 0o644); err != nil {
		_ = os.Remove(imgPath)
		return fmt.Errorf("artifact store: write meta: %w", err)
	}
	return nil
}

// Get reads artifact metadata by id.
func (s *Store) Get(id string) (Meta, error) {
	if err := s.validateID(id); err != nil {
		return Meta{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.readMeta(filepath.Join(s.dir, id+".json"), id)
}

func (s *Store) readMeta(path, id string) (Meta, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Meta{}, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return Meta{}, fmt.Errorf("artifact store: read meta: %w", err)
	}
	var meta Meta
	if err := json.Unmarshal(data, &meta); err != nil {
		return Meta{}, fmt.Errorf("artifact store: unmarshal meta: %w", err)
	}
	return meta, nil
}

// List returns artifacts newest first. A non-empty runID keeps only that
// run's artifacts.
func (s *Store) List(runID string) ([]Meta, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matches, err := filepath.Glob(filepath.Join(s.dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("artifact store: glob: %w", err)
	}

	metas := make([]Meta, 0, len(matches))
	for _, path := range matches {
		meta, err := s.readMeta(path, filepath.Base(path))
		if err != nil {
			slog.Debug("artifact store: skipping unreadable meta", "path", path, "error", err)
			continue
		}
		if runID != "" && meta.RunID != runID {
			continue
		}
		metas = append(metas, meta)
	}

	sort.Slice(metas, func(i, j int) bool {
		return metas[i].CreatedAt.After(metas[j].CreatedAt)
	})
	return metas, nil
}

// ReadImage reads the raw image bytes and returns the metadata with them.
func (s *Store) ReadImage(id string) ([]byte, Meta, error) {
	meta, err := s.Get(id)
	if err != nil {
		return nil, Meta{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(filepath.Join(s.dir, id+"."+meta.Format))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, Meta{}, fmt.Errorf("%w: image for %s", ErrNotFound, id)
		}
		return nil, Meta{}, fmt.Errorf("artifact store: read image: %w", err)
	}
	return data, meta, nil
}

// Delete removes both the image and metadata files.
func (s *Store) Delete(id string) error {
	meta, err := s.Get(id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(filepath.Join(s.dir, id+"."+meta.Format)); err != nil {
		slog.Debug("artifact image cleanup failed", "id", id, "error", err)
	}
	if err := os.Remove(filepath.Join(s.dir, id+".json")); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("artifact store: remove meta: %w", err)
	}
	return nil
}
