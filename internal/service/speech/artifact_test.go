package speech

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestArtifactStoreSaveReadRemove(t *testing.T) {
	store, err := NewArtifactStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewArtifactStore returned error: %v", err)
	}

	first, err := store.Save([]byte("audio-1"), "mp3")
	if err != nil {
		t.Fatalf("Save returned error: %v", err)
	}
	second, err := store.Save([]byte("audio-2"), "")
	if err != nil {
		t.Fatalf("Save returned error: %v", err)
	}

	if first.ID == second.ID || first.Path == second.Path {
		t.Fatal("each save should produce a distinct artifact")
	}
	if filepath.Dir(first.Path) != store.Dir() || !strings.HasSuffix(first.Path, ".mp3") {
		t.Fatalf("unexpected artifact path %s", first.Path)
	}
	if second.Format != "mp3" || first.Size != int64(len("audio-1")) {
		t.Fatalf("unexpected metadata: %+v %+v", first, second)
	}

	data, err := store.Read(first)
	if err != nil || string(data) != "audio-1" {
		t.Fatalf("Read = %q, %v", data, err)
	}

	if err := store.Remove(first); err != nil {
		t.Fatalf("Remove returned error: %v", err)
	}
	if err := store.Remove(first); err != nil {
		t.Fatalf("second Remove returned error: %v", err)
	}
	if _, err := os.Stat(first.Path); !os.IsNotExist(err) {
		t.Fatalf("artifact still on disk: %v", err)
	}
}

func TestArtifactStoreReadMissing(t *testing.T) {
	store, err := NewArtifactStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewArtifactStore returned error: %v", err)
	}

	artifact, err := store.Save([]byte("audio"), "mp3")
	if err != nil {
		t.Fatalf("Save returned error: %v", err)
	}
	os.Remove(artifact.Path)

	if _, err := store.Read(artifact); !errors.Is(err, ErrArtifactMissing) {
		t.Fatalf("expected ErrArtifactMissing, got %v", err)
	}
	if _, err := store.Read(nil); !errors.Is(err, ErrArtifactMissing) {
		t.Fatalf("expected ErrArtifactMissing for nil artifact, got %v", err)
	}
}
