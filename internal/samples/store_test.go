package samples

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"slices"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "state", "samples.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestRecordAndGet(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	sample := &Sample{
		SourcePath:   "/data/scene.tif",
		SourceSHA256: "aaa",
		Path:         "/data/scene.corrected-1234abcd.tif",
		SHA256:       "bbb",
		Size:         2048,
		DataType:     "Int16",
		NoData:       "-32768",
		IssueKinds:   []string{"InconsistentDType", "MissingNoData"},
	}
	if err := store.Record(ctx, sample); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if sample.ID == "" || sample.CreatedAt.IsZero() {
		t.Fatalf("expected id and timestamp to be filled: %+v", sample)
	}

	got, err := store.Get(ctx, sample.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Path != sample.Path || got.NoData != "-32768" || got.Size != 2048 {
		t.Fatalf("unexpected sample %+v", got)
	}
	if !slices.Equal(got.IssueKinds, sample.IssueKinds) {
		t.Fatalf("issue kinds = %v", got.IssueKinds)
	}
	if len(got.ShortID()) != 8 {
		t.Fatalf("short id = %q", got.ShortID())
	}
}

func TestGetMissing(t *testing.T) {
	store := openTestStore(t)
	if _, err := store.Get(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
	if err := store.Remove(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}

func TestListAndForSource(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	for i, src := range []string{"/a.tif", "/b.tif", "/a.tif"} {
		s := &Sample{
			SourcePath: src,
			Path:       filepath.Join("/out", NewID()+".tif"),
			DataType:   "UInt8",
			CreatedAt:  base.Add(time.Duration(i) * time.Minute),
		}
		if err := store.Record(ctx, s); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	all, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("List returned %d samples", len(all))
	}
	if !all[0].CreatedAt.After(all[2].CreatedAt) {
		t.Fatal("expected newest first")
	}
	if all[0].IssueKinds == nil {
		t.Fatal("expected empty issue kinds to decode as an empty slice")
	}

	fromA, err := store.ForSource(ctx, "/a.tif")
	if err != nil {
		t.Fatalf("ForSource: %v", err)
	}
	if len(fromA) != 2 {
		t.Fatalf("ForSource returned %d samples", len(fromA))
	}

	if err := store.Remove(ctx, fromA[0].ID); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if rest, _ := store.ForSource(ctx, "/a.tif"); len(rest) != 1 {
		t.Fatalf("expected one sample left, got %d", len(rest))
	}
}

func TestReopenKeepsRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "samples.db")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := store.Record(context.Background(), &Sample{SourcePath: "/s.tif", Path: "/p.tif", DataType: "UInt8"}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	_ = store.Close()

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	all, err := reopened.List(context.Background())
	if err != nil || len(all) != 1 {
		t.Fatalf("List after reopen = %d, %v", len(all), err)
	}
}

func TestRecordRejectsMissingPaths(t *testing.T) {
	store := openTestStore(t)
	if err := store.Record(context.Background(), &Sample{Path: "/p.tif"}); err == nil {
		t.Fatal("expected missing source path to fail")
	}
}

func TestOpenRejectsNewerSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "samples.db")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := store.db.Exec("PRAGMA user_version = 7"); err != nil {
		t.Fatalf("bump version: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if _, err := Open(path); !errors.Is(err, ErrSchemaMismatch) {
		t.Fatalf("Open error = %v, want ErrSchemaMismatch", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	defer db.Close()
	var tables int
	if err := db.QueryRow("SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='samples'").Scan(&tables); err != nil {
		t.Fatalf("query: %v", err)
	}
	if tables != 1 {
		t.Fatalf("samples table count = %d", tables)
	}
}
