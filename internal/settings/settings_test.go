package settings

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestOpen_MissingFile(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "settings.yaml"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if _, ok := s.Get(KeyChatDisclaimer); ok {
		t.Error("expected empty store")
	}
}

func TestUpdate_Persists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "settings.yaml")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := s.Update(KeyChatDisclaimer, true); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	v, ok := reopened.Get(KeyChatDisclaimer)
	if !ok || !v {
		t.Errorf("Get(%q) = %v, %v; want true, true", KeyChatDisclaimer, v, ok)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	if !strings.Contains(string(data), "amazonQChatDisclaimer: true") {
		t.Errorf("file content = %q", data)
	}
}

func TestOpen_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	if err := os.WriteFile(path, []byte("prompts: [unclosed"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	if _, err := Open(path); err == nil {
		t.Error("expected parse error")
	}
}
