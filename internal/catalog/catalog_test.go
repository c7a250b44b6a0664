package catalog_test

import (
	"context"
	"testing"

	"github.com/soundmark/fpcore/internal/catalog"
)

func openTestCatalog(t *testing.T) *catalog.GormCatalog {
	t.Helper()
	c, err := catalog.OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("open sqlite catalog: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestCatalogRegisterAndGet(t *testing.T) {
	ctx := context.Background()
	c := openTestCatalog(t)

	id, err := c.Register(ctx, "Clair de Lune", "Debussy", "file:///clair.flac", 271.5, 44100)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if id == 0 {
		t.Fatal("expected a nonzero track id")
	}

	track, err := c.Get(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if track.Title != "Clair de Lune" || track.Artist != "Debussy" {
		t.Fatalf("unexpected track: %+v", track)
	}
}

func TestCatalogGetBySource(t *testing.T) {
	ctx := context.Background()
	c := openTestCatalog(t)

	id, err := c.Register(ctx, "Title", "Artist", "file:///a.wav", 10, 22050)
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	track, err := c.GetBySource(ctx, "file:///a.wav")
	if err != nil {
		t.Fatalf("get by source: %v", err)
	}
	if track.ID != id {
		t.Fatalf("expected id %d, got %d", id, track.ID)
	}
}

func TestCatalogGetMissingReturnsNotFound(t *testing.T) {
	ctx := context.Background()
	c := openTestCatalog(t)

	if _, err := c.Get(ctx, 999); err != catalog.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCatalogDeleteRemovesTrack(t *testing.T) {
	ctx := context.Background()
	c := openTestCatalog(t)

	id, err := c.Register(ctx, "Title", "Artist", "file:///b.wav", 10, 22050)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := c.Delete(ctx, id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := c.Get(ctx, id); err != catalog.ErrNotFound {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestCatalogListOrdered(t *testing.T) {
	ctx := context.Background()
	c := openTestCatalog(t)

	for i := 0; i < 3; i++ {
		if _, err := c.Register(ctx, "T", "A", "file:///"+string(rune('a'+i)), 1, 22050); err != nil {
			t.Fatalf("register: %v", err)
		}
	}

	tracks, err := c.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(tracks) != 3 {
		t.Fatalf("expected 3 tracks, got %d", len(tracks))
	}
	for i := 1; i < len(tracks); i++ {
		if tracks[i].ID < tracks[i-1].ID {
			t.Fatal("expected tracks ordered by id")
		}
	}
}
