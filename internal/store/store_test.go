package store

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/formlab/squatview/internal/types"
)

func testDocument() *types.Document {
	return &types.Document{
		Source:     "remote",
		FPS:        30,
		FrameCount: 2,
		Frames: []types.AnalyzedFrame{
			{
				Index:     0,
				Timestamp: 0,
				Landmarks: []types.Landmark{{X: 0.5, Y: 0.5, Visibility: 0.9}},
				Scores:    map[string]float64{types.ScoreKneeDepth: 80},
			},
			{
				Index:     1,
				Timestamp: 0.5,
				Landmarks: []types.Landmark{{X: 0.6, Y: 0.6, Visibility: 0.8}},
			},
		},
	}
}

func TestStoreSaveLoadRoundtrip(t *testing.T) {
	st, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	sess := &Session{
		Filename: "squat.mp4",
		Duration: 12.5,
		Width:    720,
		Height:   1280,
		Reps:     3,
		Document: testDocument(),
	}
	if err := st.Save(sess); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if sess.ID == "" {
		t.Fatal("Save() did not assign an ID")
	}
	if sess.CreatedAt.IsZero() {
		t.Fatal("Save() did not stamp CreatedAt")
	}

	got, err := st.Load(sess.ID)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.Filename != "squat.mp4" || got.Duration != 12.5 || got.Reps != 3 {
		t.Errorf("loaded session = %+v, want the saved fields back", got)
	}
	if got.Document == nil || len(got.Document.Frames) != 2 {
		t.Fatalf("loaded document missing frames: %+v", got.Document)
	}
	lm := got.Document.Frames[0].Landmarks[0]
	if lm.X != 0.5 || lm.Visibility != 0.9 {
		t.Errorf("landmark = %+v, want x=0.5 visibility=0.9", lm)
	}
	if got.Document.Frames[0].Scores[types.ScoreKneeDepth] != 80 {
		t.Errorf("score = %v, want 80", got.Document.Frames[0].Scores[types.ScoreKneeDepth])
	}
}

func TestStoreLoadMissing(t *testing.T) {
	st, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	_, err = st.Load(NewID())
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Load() error = %v, want ErrNotFound", err)
	}
}

func TestStoreRejectsBadIDs(t *testing.T) {
	st, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	// Path traversal via the ID must fail validation, not hit the filesystem.
	for _, id := range []string{"../escape", "not-a-uuid", ""} {
		if _, err := st.Load(id); err == nil || errors.Is(err, ErrNotFound) {
			t.Errorf("Load(%q) error = %v, want invalid id error", id, err)
		}
	}
}

func TestStoreList(t *testing.T) {
	st, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	older := &Session{Filename: "first.mp4", CreatedAt: time.Now().Add(-time.Hour), Document: testDocument()}
	newer := &Session{Filename: "second.mp4", CreatedAt: time.Now(), Document: testDocument()}
	for _, s := range []*Session{older, newer} {
		if err := st.Save(s); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
	}

	infos, err := st.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(infos) != 2 {
		t.Fatalf("got %d sessions, want 2", len(infos))
	}
	if infos[0].Filename != "second.mp4" {
		t.Errorf("first listed = %q, want newest first", infos[0].Filename)
	}
	if infos[0].Frames != 2 || infos[0].Source != "remote" {
		t.Errorf("listing = %+v, want frames=2 source=remote", infos[0])
	}
}

func TestStoreListSkipsCorruptFiles(t *testing.T) {
	dir := t.TempDir()
	st, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := st.Save(&Session{Filename: "good.mp4", Document: testDocument()}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, NewID()+sessionExt), []byte("not msgpack"), 0o644); err != nil {
		t.Fatalf("failed to plant corrupt file: %v", err)
	}

	infos, err := st.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(infos) != 1 {
		t.Errorf("got %d sessions, want 1 with the corrupt file skipped", len(infos))
	}
}

func TestStoreDelete(t *testing.T) {
	st, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	sess := &Session{Filename: "gone.mp4", Document: testDocument()}
	if err := st.Save(sess); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := st.Delete(sess.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := st.Load(sess.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Load() after delete error = %v, want ErrNotFound", err)
	}
	if err := st.Delete(sess.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete() error = %v, want ErrNotFound", err)
	}
}
