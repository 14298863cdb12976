package fs_test

import (
	"context"
	"io"
	"strings"
	"testing"

	"procedurecore/internal/blob/core"
	"procedurecore/internal/infra/blob/fs"
)

func newTestStore(t *testing.T) core.Store {
	t.Helper()
	store, err := fs.New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return store
}

func TestPutGetHeadRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	info, err := store.Put(ctx, "revisions/r1/wps.pdf", strings.NewReader("document body"), core.PutOptions{
		ContentType: "application/pdf",
		Metadata:    map[string]string{"title": "WPS-001"},
	})
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if info.ETag == "" || info.Size != int64(len("document body")) {
		t.Fatalf("unexpected info: %+v", info)
	}

	head, err := store.Head(ctx, "revisions/r1/wps.pdf")
	if err != nil {
		t.Fatalf("Head: %v", err)
	}
	if head.ETag != info.ETag || head.Metadata["title"] != "WPS-001" {
		t.Fatalf("head mismatch: %+v vs %+v", head, info)
	}

	got, body, err := store.Get(ctx, "revisions/r1/wps.pdf")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer func() { _ = body.Close() }()
	data, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if string(data) != "document body" || got.ContentType != "application/pdf" {
		t.Fatalf("round trip mismatch: %q %+v", data, got)
	}
}

func TestPutRejectsExistingKey(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	if _, err := store.Put(ctx, "doc", strings.NewReader("a"), core.PutOptions{}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, err := store.Put(ctx, "doc", strings.NewReader("b"), core.PutOptions{}); err == nil {
		t.Fatalf("expected duplicate key rejection")
	}
}

func TestKeySanitization(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	for _, key := range []string{"", "../escape", "/absolute", "a/../../b"} {
		if _, err := store.Put(ctx, key, strings.NewReader("x"), core.PutOptions{}); err == nil {
			t.Fatalf("expected key %q to be rejected", key)
		}
	}
}

func TestDeleteRemovesBlobAndSidecar(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	if _, err := store.Put(ctx, "doc", strings.NewReader("a"), core.PutOptions{}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if ok, err := store.Delete(ctx, "doc"); err != nil || !ok {
		t.Fatalf("Delete existing: %v %v", ok, err)
	}
	if ok, err := store.Delete(ctx, "doc"); err != nil || ok {
		t.Fatalf("Delete missing: %v %v", ok, err)
	}
	infos, err := store.List(ctx, "")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(infos) != 0 {
		t.Fatalf("expected empty listing after delete, got %+v", infos)
	}
}

func TestPresignReturnsStableURL(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	if _, err := store.Put(ctx, "doc", strings.NewReader("a"), core.PutOptions{}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	url, err := store.PresignURL(ctx, "doc", core.SignedURLOptions{Method: "GET"})
	if err != nil {
		t.Fatalf("PresignURL: %v", err)
	}
	if !strings.HasPrefix(url, "http://local.blob/") {
		t.Fatalf("unexpected url %q", url)
	}
	if _, err := store.PresignURL(ctx, "doc", core.SignedURLOptions{Method: "PUT"}); err == nil {
		t.Fatalf("expected PUT presign to be unsupported")
	}
}
