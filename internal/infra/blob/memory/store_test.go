package memory_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"procedurecore/internal/blob/core"
	"procedurecore/internal/infra/blob/memory"
)

func TestPutGetRoundTrip(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	info, err := store.Put(ctx, "revisions/r1/wps.pdf", strings.NewReader("payload"), core.PutOptions{
		ContentType: "application/pdf",
		Metadata:    map[string]string{"revision_id": "r1"},
	})
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if info.Size != int64(len("payload")) || info.ContentType != "application/pdf" {
		t.Fatalf("unexpected info: %+v", info)
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
	if string(data) != "payload" || got.Metadata["revision_id"] != "r1" {
		t.Fatalf("round trip mismatch: %q %+v", data, got)
	}
}

func TestPutRejectsExistingKey(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	if _, err := store.Put(ctx, "k", strings.NewReader("a"), core.PutOptions{}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, err := store.Put(ctx, "k", strings.NewReader("b"), core.PutOptions{}); err == nil {
		t.Fatalf("expected duplicate key rejection")
	}
}

func TestDeleteReportsExistence(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	if _, err := store.Put(ctx, "k", strings.NewReader("a"), core.PutOptions{}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if ok, err := store.Delete(ctx, "k"); err != nil || !ok {
		t.Fatalf("Delete existing: %v %v", ok, err)
	}
	if ok, err := store.Delete(ctx, "k"); err != nil || ok {
		t.Fatalf("Delete missing: %v %v", ok, err)
	}
}

func TestListFiltersByPrefix(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	for _, key := range []string{"revisions/a/doc", "revisions/b/doc", "other/doc"} {
		if _, err := store.Put(ctx, key, strings.NewReader("x"), core.PutOptions{}); err != nil {
			t.Fatalf("Put %s: %v", key, err)
		}
	}
	infos, err := store.List(ctx, "revisions/")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(infos) != 2 || infos[0].Key != "revisions/a/doc" || infos[1].Key != "revisions/b/doc" {
		t.Fatalf("unexpected listing: %+v", infos)
	}
}

func TestPresignUnsupported(t *testing.T) {
	store := memory.New()
	if _, err := store.PresignURL(context.Background(), "k", core.SignedURLOptions{}); !errors.Is(err, core.ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
}
