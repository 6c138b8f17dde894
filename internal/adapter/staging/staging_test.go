package staging

import (
	"bytes"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
)

func newTestArea(t *testing.T) *Area {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	area, err := NewArea(t.TempDir(), logger)
	if err != nil {
		t.Fatalf("failed to create staging area: %v", err)
	}
	return area
}

func TestArea_Lifecycle(t *testing.T) {
	area := newTestArea(t)
	payload := []byte("PK\x03\x04 fake docx")

	path, err := area.Write("docx-in-1-notes.docx", payload)
	if err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if filepath.Dir(path) != area.dir {
		t.Errorf("blob staged outside the area: %s", path)
	}

	got, err := area.Read("docx-in-1-notes.docx")
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("read back %q, want %q", got, payload)
	}

	if err := area.Remove("docx-in-1-notes.docx"); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if area.Exists("docx-in-1-notes.docx") {
		t.Error("blob still present after remove")
	}
}

func TestArea_RemoveAbsentIsSuccess(t *testing.T) {
	area := newTestArea(t)
	if err := area.Remove("never-written.pdf"); err != nil {
		t.Fatalf("removing an absent blob should succeed, got %v", err)
	}
}

func TestArea_NameCannotEscapeDirectory(t *testing.T) {
	area := newTestArea(t)
	path := area.Path("../../etc/passwd")
	if filepath.Dir(path) != area.dir {
		t.Errorf("path escaped the staging area: %s", path)
	}
}
