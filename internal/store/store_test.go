package store

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/bookmerge/internal/catalog"
	"github.com/roach88/bookmerge/internal/render"
)

// createTestStore opens a fresh database in a temp dir.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nav.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func assertPragma(t *testing.T, s *Store, name, want string) {
	t.Helper()
	got, err := s.pragma(name)
	require.NoError(t, err)
	assert.Equal(t, want, got, "PRAGMA %s", name)
}

func testCatalog() *catalog.Catalog {
	return &catalog.Catalog{
		Groups: []catalog.Group{
			{ID: 1, Name: "常用站点", OrderNum: 0, IsPublic: 1},
			{ID: 2, Name: "Dev", OrderNum: 1, IsPublic: 1},
			{ID: 3, Name: "Private", OrderNum: 2, IsPublic: 0},
		},
		Sites: []catalog.Site{
			{ID: 1, GroupID: 1, Name: "GitHub", URL: "https://github.com/", OrderNum: 0, IsPublic: 1},
			{ID: 2, GroupID: 2, Name: "Go", URL: "https://go.dev/doc/", Icon: "https://icon/go.png", OrderNum: 0, IsPublic: 1},
			{ID: 3, GroupID: 2, Name: "O'Reilly", URL: "https://oreilly.com/x", Description: "books", Notes: "n", OrderNum: 1, IsPublic: 1},
			{ID: 4, GroupID: 3, Name: "bank", URL: "https://bank.example/login", OrderNum: 0, IsPublic: 0},
		},
		Configs: catalog.Configs{
			{Key: "site.title", Value: "Nav"},
			{Key: "DB_INITIALIZED", Value: "true"},
			{Key: "site.customCss", Value: ""},
		},
	}
}

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nav.db")

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nav.db")

	for i := 0; i < 3; i++ {
		s, err := Open(path)
		require.NoError(t, err, "open %d", i)
		s.Close()
	}

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	for _, table := range []string{"groups", "sites", "configs"} {
		var name string
		err := s.db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		assert.NoError(t, err, "table %q", table)
	}
}

func TestOpen_Pragmas(t *testing.T) {
	s := createTestStore(t)

	assertPragma(t, s, "journal_mode", "wal")
	assertPragma(t, s, "foreign_keys", "1")
	assertPragma(t, s, "busy_timeout", "5000")
	assertPragma(t, s, "user_version", "1")
}

func TestOpen_InvalidPath(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing", "dir", "nav.db"))
	assert.Error(t, err)
}

func TestReplaceCatalog_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	want := testCatalog()

	require.NoError(t, s.ReplaceCatalog(ctx, want))

	got, err := s.ReadCatalog(ctx)
	require.NoError(t, err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("catalog mismatch (-want +got):\n%s", diff)
	}
}

func TestReplaceCatalog_Replaces(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.ReplaceCatalog(ctx, testCatalog()))

	smaller := &catalog.Catalog{
		Groups:  []catalog.Group{{ID: 1, Name: "Only", OrderNum: 0, IsPublic: 1}},
		Sites:   []catalog.Site{{ID: 1, GroupID: 1, Name: "a", URL: "https://a/", OrderNum: 0, IsPublic: 1}},
		Configs: catalog.Configs{{Key: "k", Value: "v"}},
	}
	require.NoError(t, s.ReplaceCatalog(ctx, smaller))

	g, st, c, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, [3]int{1, 1, 1}, [3]int{g, st, c})

	got, err := s.ReadCatalog(ctx)
	require.NoError(t, err)
	assert.Equal(t, smaller, got)
}

func TestReplaceCatalog_RollsBackOnFailure(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.ReplaceCatalog(ctx, testCatalog()))

	bad := testCatalog()
	bad.Sites[1].URL = bad.Sites[0].URL

	err := s.ReplaceCatalog(ctx, bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert site")

	got, err := s.ReadCatalog(ctx)
	require.NoError(t, err)
	assert.Equal(t, testCatalog(), got, "previous catalog survives")
}

func TestReplaceCatalog_DanglingGroupRejected(t *testing.T) {
	s := createTestStore(t)
	bad := testCatalog()
	bad.Sites[0].GroupID = 42

	assert.Error(t, s.ReplaceCatalog(context.Background(), bad))
}

func TestApplyScript_RenderedSQL(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	want := testCatalog()

	var script bytes.Buffer
	require.NoError(t, render.SQL(&script, want, render.SQLOptions{}))

	// Twice: the script clears what it loaded the first time.
	require.NoError(t, s.ApplyScript(ctx, script.String()))
	require.NoError(t, s.ApplyScript(ctx, script.String()))

	got, err := s.ReadCatalog(ctx)
	require.NoError(t, err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("catalog mismatch (-want +got):\n%s", diff)
	}
	assertPragma(t, s, "foreign_keys", "1")
}

func TestApplyScript_Errors(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	assert.Error(t, s.ApplyScript(ctx, "  \n"))

	err := s.ApplyScript(ctx, "PRAGMA foreign_keys = OFF;\nINSERT INTO nowhere VALUES (1);")
	assert.Error(t, err)
	assertPragma(t, s, "foreign_keys", "1")
}

func TestApplyScript_FailureLeavesDatabaseUntouched(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.ReplaceCatalog(ctx, testCatalog()))

	tests := []struct {
		name   string
		script string
		want   string
	}{
		{"fails after clearing", "PRAGMA foreign_keys = OFF;\nDELETE FROM sites;\nDELETE FROM groups;\nINSERT INTO nowhere VALUES (1);", "nowhere"},
		{"dangling group", "DELETE FROM groups WHERE id = 2;", "foreign key violation"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.ApplyScript(ctx, tt.script)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)

			groups, sites, configs, err := s.Count(ctx)
			require.NoError(t, err)
			assert.Equal(t, []int{3, 4, 3}, []int{groups, sites, configs})
			assertPragma(t, s, "foreign_keys", "1")
		})
	}
}

func TestReadCatalog_Empty(t *testing.T) {
	s := createTestStore(t)

	got, err := s.ReadCatalog(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, got.Groups)
	assert.NotNil(t, got.Sites)
	assert.Empty(t, got.Groups)
	assert.Empty(t, got.Configs)
}
