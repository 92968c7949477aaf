package storage

import (
	"context"
	"io"
	"strings"
	"testing"
)

func TestLocalStoreRoundTrip(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("store init error: %v", err)
	}

	key := "resources/abc123.pdf"
	if err := store.Save(context.Background(), key, strings.NewReader("payload"), "application/pdf"); err != nil {
		t.Fatalf("save error: %v", err)
	}

	reader, err := store.Open(context.Background(), key)
	if err != nil {
		t.Fatalf("open error: %v", err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		t.Fatalf("read error: %v", err)
	}
	if string(data) != "payload" {
		t.Fatalf("expected payload, got %q", data)
	}
}

func TestLocalStoreRejectsTraversal(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("store init error: %v", err)
	}
	if err := store.Save(context.Background(), "../outside", strings.NewReader("x"), ""); err == nil {
		t.Fatalf("expected traversal key to be rejected")
	}
	if _, err := store.Open(context.Background(), "../outside"); err == nil {
		t.Fatalf("expected traversal key to be rejected")
	}
}
