// Package store persists analyzed sessions on disk. Sessions are msgpack
// files named by their UUID; the format is compact enough that whole-file
// reads and writes stay cheap at typical session sizes.
package store

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/formlab/squatview/internal/types"
)

const sessionExt = ".sqv"

// Session is one recorded and analyzed squat session.
type Session struct {
	ID        string          `msgpack:"id"`
	CreatedAt time.Time       `msgpack:"created_at"`
	Filename  string          `msgpack:"filename"`
	Duration  float64         `msgpack:"duration"`
	Width     int             `msgpack:"width"`
	Height    int             `msgpack:"height"`
	Reps      int             `msgpack:"reps"`
	Document  *types.Document `msgpack:"document"`
}

// SessionInfo is the listing view of a session, without the frame payload.
type SessionInfo struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Filename  string    `json:"filename"`
	Duration  float64   `json:"duration"`
	Reps      int       `json:"reps"`
	Source    string    `json:"source"`
	Frames    int       `json:"frames"`
}

// Store reads and writes sessions under a data directory.
type Store struct {
	dir string
	mu  sync.RWMutex
}

// Open ensures the data directory exists and returns a store over it.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// NewID returns a fresh session identifier.
func NewID() string {
	return uuid.NewString()
}

// Save writes the session to disk. A session with no ID gets one assigned.
// The write goes through a temp file and rename so a crash mid-write never
// leaves a truncated session behind.
func (s *Store) Save(sess *Session) error {
	if sess.ID == "" {
		sess.ID = NewID()
	}
	if _, err := uuid.Parse(sess.ID); err != nil {
		return fmt.Errorf("invalid session id %q: %w", sess.ID, err)
	}
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = time.Now().UTC()
	}

	payload, err := msgpack.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	final := s.path(sess.ID)
	tmp := final + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o644); err != nil {
		return fmt.Errorf("failed to write session: %w", err)
	}
	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to commit session: %w", err)
	}

	slog.Info("session saved",
		"session_id", sess.ID,
		"bytes", len(payload),
		"frames", frameCount(sess.Document),
	)
	return nil
}

// Load reads one session by ID.
func (s *Store) Load(id string) (*Session, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("invalid session id %q: %w", id, err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("session %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to read session: %w", err)
	}

	var sess Session
	if err := msgpack.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("failed to decode session %s: %w", id, err)
	}
	return &sess, nil
}

// Delete removes one session by ID.
func (s *Store) Delete(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("invalid session id %q: %w", id, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path(id))
	if os.IsNotExist(err) {
		return fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	return err
}

// List returns all stored sessions, newest first. Files that fail to decode
// are skipped with a warning rather than failing the whole listing.
func (s *Store) List() ([]SessionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read data dir: %w", err)
	}

	infos := make([]SessionInfo, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), sessionExt) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.dir, e.Name()))
		if err != nil {
			slog.Warn("skipping unreadable session file", "file", e.Name(), "error", err)
			continue
		}
		var sess Session
		if err := msgpack.Unmarshal(data, &sess); err != nil {
			slog.Warn("skipping corrupt session file", "file", e.Name(), "error", err)
			continue
		}
		infos = append(infos, info(&sess))
	}

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].CreatedAt.After(infos[j].CreatedAt)
	})
	return infos, nil
}

func (s *Store) path(id string) string {
	return filepath.Join(s.dir, id+sessionExt)
}

func info(sess *Session) SessionInfo {
	si := SessionInfo{
		ID:        sess.ID,
		CreatedAt: sess.CreatedAt,
		Filename:  sess.Filename,
		Duration:  sess.Duration,
		Reps:      sess.Reps,
	}
	if sess.Document != nil {
		si.Source = sess.Document.Source
		si.Frames = len(sess.Document.Frames)
	}
	return si
}

func frameCount(doc *types.Document) int {
	if doc == nil {
		return 0
	}
	return len(doc.Frames)
}
