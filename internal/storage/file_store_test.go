package storage

import (
	"context"
	"io"
	"strings"
	"testing"
)

func TestFileStoreRoundTrip(t *testing.T) {
	fs, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	body := "mock pdf bytes"
	if err := fs.Put(ctx, "u1/f1/notes.pdf", strings.NewReader(body), int64(len(body)), "application/pdf"); err != nil {
		t.Fatalf("put: %v", err)
	}
	rc, err := fs.Get(ctx, "u1/f1/notes.pdf")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer rc.Close()
	got, err := io.ReadAll(rc)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != body {
		t.Fatalf("unexpected body: %q", got)
	}

	if err := fs.Delete(ctx, "u1/f1/notes.pdf"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := fs.Get(ctx, "u1/f1/notes.pdf"); err == nil {
		t.Fatal("expected error after delete")
	}
	// deleting twice is a no-op
	if err := fs.Delete(ctx, "u1/f1/notes.pdf"); err != nil {
		t.Fatalf("second delete: %v", err)
	}
}

func TestFileStoreRejectsTraversal(t *testing.T) {
	dir := t.TempDir()
	fs, err := NewFileStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if err := fs.Put(ctx, "../../etc/evil", strings.NewReader("x"), 1, ""); err != nil {
		t.Fatalf("put: %v", err)
	}
	if !strings.HasPrefix(fs.path("../../etc/evil"), dir) {
		t.Fatalf("path escaped base dir: %q", fs.path("../../etc/evil"))
	}
}

func TestNewFileStoreRequiresPath(t *testing.T) {
	if _, err := NewFileStore("  "); err == nil {
		t.Fatal("expected error for empty base path")
	}
}
