package identity

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

type brokenStore struct {
	loadErr error
	saveErr error
}

func (b brokenStore) Load() (string, error) { return "", b.loadErr }
func (b brokenStore) Save(string) error     { return b.saveErr }

func TestProvider_StableAcrossCalls(t *testing.T) {
	p := NewProvider(&MemoryStore{})

	first := p.GetOrCreateLocalID()
	if first == "" {
		t.Fatal("Expected non-empty id")
	}

	for i := 0; i < 5; i++ {
		if got := p.GetOrCreateLocalID(); got != first {
			t.Errorf("Call %d returned %s, expected %s", i, got, first)
		}
	}
}

func TestProvider_FileStoreSurvivesRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "participant_id")

	id := NewProvider(NewFileStore(path)).GetOrCreateLocalID()

	// A new provider over the same file simulates a reload
	again := NewProvider(NewFileStore(path)).GetOrCreateLocalID()
	if again != id {
		t.Errorf("Expected %s after reload, got %s", id, again)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Expected id file to exist: %v", err)
	}
	if string(data) != id+"\n" {
		t.Errorf("Unexpected file contents %q", data)
	}
}

func TestProvider_DegradesWhenLoadFails(t *testing.T) {
	p := NewProvider(brokenStore{loadErr: errors.New("disk gone")})

	a := p.GetOrCreateLocalID()
	b := p.GetOrCreateLocalID()
	if a == "" || b == "" {
		t.Fatal("Expected ephemeral ids even without storage")
	}
	if a == b {
		t.Error("Expected a fresh ephemeral id per call when storage is unavailable")
	}
}

func TestProvider_DegradesWhenSaveFails(t *testing.T) {
	p := NewProvider(brokenStore{saveErr: ErrStorageUnavailable})

	if p.GetOrCreateLocalID() == p.GetOrCreateLocalID() {
		t.Error("Expected ids to differ when nothing can be persisted")
	}
}

func TestProvider_NilStore(t *testing.T) {
	p := NewProvider(nil)
	if p.GetOrCreateLocalID() == "" {
		t.Error("Expected an id from a nil store")
	}
}

func TestFileStore_EmptyPath(t *testing.T) {
	s := NewFileStore("")
	if _, err := s.Load(); !errors.Is(err, ErrStorageUnavailable) {
		t.Errorf("Expected ErrStorageUnavailable, got %v", err)
	}
}

func TestNewID_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := newID()
		if seen[id] {
			t.Fatalf("Duplicate id %s", id)
		}
		seen[id] = true
	}
}
