package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/bookmerge/internal/catalog"
)

// Records returns n distinct records named "site-1".."site-n" with URLs
// under example.com.
func Records(n int) []catalog.Record {
	out := make([]catalog.Record, n)
	for i := range out {
		out[i] = catalog.Record{
			Name:     fmt.Sprintf("site-%d", i+1),
			URL:      fmt.Sprintf("https://example.com/site/%d", i+1),
			IsPublic: 1,
		}
	}
	return out
}

// WriteFile writes content to dir/name and returns the path.
func WriteFile(t testing.TB, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// FlatSnapshot is a small flat-shape snapshot with two groups.
const FlatSnapshot = `{
  "groups": [
    {"id": 1, "name": "Dev", "order_num": 0, "is_public": 1},
    {"id": 2, "name": "Private", "order_num": 1, "is_public": 0}
  ],
  "sites": [
    {"id": 1, "group_id": 1, "name": "Go", "url": "https://go.dev/", "icon": "", "description": "", "notes": "", "order_num": 0, "is_public": 1},
    {"id": 2, "group_id": 1, "name": "MySQL docs", "url": "https://dev.mysql.com/doc/", "icon": "", "description": "", "notes": "", "order_num": 1, "is_public": 1},
    {"id": 3, "group_id": 2, "name": "CSDN post", "url": "https://blog.csdn.net/u/article/1", "icon": "", "description": "", "notes": "", "order_num": 0, "is_public": 0}
  ],
  "configs": {"site.title": "Nav", "site.name": "Home"}
}`

// NestedSnapshot is a nested-shape snapshot sharing one URL with FlatSnapshot.
const NestedSnapshot = `{
  "groups": [
    {"name": "Tools", "is_public": true, "sites": [
      {"name": "Go (backup)", "url": "https://go.dev/"},
      {"name": "Kafka", "url": "https://kafka.apache.org/documentation/"}
    ]}
  ],
  "configs": {"site.title": "Backup Nav", "DB_INITIALIZED": "true"}
}`
