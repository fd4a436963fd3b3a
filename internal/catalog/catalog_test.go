package catalog

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validCatalog() *Catalog {
	return &Catalog{
		Groups: []Group{
			{ID: 1, Name: "常用站点", OrderNum: 0, IsPublic: 1},
			{ID: 2, Name: "Dev", OrderNum: 1, IsPublic: 0},
		},
		Sites: []Site{
			{ID: 1, GroupID: 1, Name: "Home", URL: "https://example.com/", OrderNum: 0, IsPublic: 1},
			{ID: 2, GroupID: 2, Name: "Go", URL: "https://go.dev/", OrderNum: 0, IsPublic: 1},
			{ID: 3, GroupID: 2, Name: "Rust", URL: "https://rust-lang.org/", OrderNum: 1, IsPublic: 1},
		},
		Configs: Configs{{Key: "site.title", Value: "Nav"}},
	}
}

func TestValidate_Consistent(t *testing.T) {
	assert.Empty(t, validCatalog().Validate())
	assert.Empty(t, (&Catalog{}).Validate())
}

func TestValidate_Violations(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Catalog)
		code   InvariantCode
	}{
		{"duplicate url", func(c *Catalog) { c.Sites[2].URL = "https://go.dev/" }, ErrDuplicateURL},
		{"dangling group", func(c *Catalog) { c.Sites[0].GroupID = 9 }, ErrDanglingGroup},
		{"order gap", func(c *Catalog) { c.Sites[2].OrderNum = 2 }, ErrOrderGap},
		{"order starts at one", func(c *Catalog) { c.Sites[0].OrderNum = 1 }, ErrOrderGap},
		{"group id", func(c *Catalog) { c.Groups[1].ID = 5 }, ErrGroupIdentity},
		{"group order_num", func(c *Catalog) { c.Groups[1].OrderNum = 0 }, ErrGroupIdentity},
		{"group name repeated", func(c *Catalog) { c.Groups[1].Name = "常用站点" }, ErrGroupIdentity},
		{"site id", func(c *Catalog) { c.Sites[1].ID = 7 }, ErrSiteIdentity},
		{"config repeated", func(c *Catalog) {
			c.Configs = append(c.Configs, Config{Key: "site.title", Value: "Other"})
		}, ErrDuplicateConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validCatalog()
			tt.mutate(c)
			errs := c.Validate()
			require.NotEmpty(t, errs)

			found := false
			for _, err := range errs {
				if IsInvariantError(err, tt.code) {
					found = true
				}
			}
			assert.True(t, found, "expected %s among %v", tt.code, errs)
		})
	}
}

func TestValidate_ReportsEveryViolation(t *testing.T) {
	c := validCatalog()
	c.Sites[1].URL = c.Sites[0].URL
	c.Sites[2].GroupID = 42

	errs := c.Validate()
	assert.Len(t, errs, 2)
	assert.True(t, IsInvariantError(errs[0], ErrDuplicateURL))
	assert.True(t, IsInvariantError(errs[1], ErrDanglingGroup))
}

func TestCatalogHelpers(t *testing.T) {
	c := validCatalog()

	require.NotNil(t, c.GroupByID(2))
	assert.Equal(t, "Dev", c.GroupByID(2).Name)
	assert.Nil(t, c.GroupByID(3))

	sites := c.SitesIn(2)
	require.Len(t, sites, 2)
	assert.Equal(t, "Go", sites[0].Name)

	assert.Equal(t, map[int64]int{1: 1, 2: 2}, c.MemberCounts())
}

func TestConfigs_FirstSeenWins(t *testing.T) {
	var c Configs
	assert.True(t, c.Add("site.title", "A"))
	assert.False(t, c.Add("site.title", "B"))
	assert.True(t, c.Add("site.name", "N"))

	v, ok := c.Get("site.title")
	assert.True(t, ok)
	assert.Equal(t, "A", v)
	assert.False(t, c.Has("missing"))
	assert.Equal(t, map[string]string{"site.title": "A", "site.name": "N"}, c.Map())
}

func TestConfigs_JSONKeepsOrder(t *testing.T) {
	c := Configs{
		{Key: "z.last", Value: "1"},
		{Key: "a.first", Value: "导航站"},
		{Key: "m.middle", Value: ""},
	}

	data, err := json.Marshal(c)
	require.NoError(t, err)
	assert.Equal(t, `{"z.last":"1","a.first":"导航站","m.middle":""}`, string(data))

	var back Configs
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, c, back)
}

func TestConfigs_UnmarshalScalars(t *testing.T) {
	var c Configs
	require.NoError(t, json.Unmarshal([]byte(`{"opacity": 0.15, "enabled": true, "title": "Nav", "css": null}`), &c))

	assert.Equal(t, Configs{
		{Key: "opacity", Value: "0.15"},
		{Key: "enabled", Value: "true"},
		{Key: "title", Value: "Nav"},
		{Key: "css", Value: ""},
	}, c)
}

func TestConfigs_UnmarshalRejectsNonObject(t *testing.T) {
	var c Configs
	err := json.Unmarshal([]byte(`["a", "b"]`), &c)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected object")
}

func TestMarshalCanonical(t *testing.T) {
	c := &Catalog{
		Groups: []Group{{ID: 1, Name: "A&B", OrderNum: 0, IsPublic: 1}},
		Sites: []Site{
			{ID: 1, GroupID: 1, Name: "<tag>", URL: "https://a.example/?x=1&y=2", OrderNum: 0, IsPublic: 0},
		},
		Configs: Configs{{Key: "k", Value: "v"}},
	}

	data, err := MarshalCanonical(c)
	require.NoError(t, err)
	want := `{"groups":[{"id":1,"name":"A&B","order_num":0,"is_public":1}],` +
		`"sites":[{"id":1,"group_id":1,"name":"<tag>","url":"https://a.example/?x=1&y=2","icon":"","description":"","notes":"","order_num":0,"is_public":0}],` +
		`"configs":{"k":"v"}}`
	assert.Equal(t, want, string(data))
}

func TestHash_Deterministic(t *testing.T) {
	h1, err := validCatalog().Hash()
	require.NoError(t, err)
	h2, err := validCatalog().Hash()
	require.NoError(t, err)

	assert.Equal(t, h1, h2, "Hash must be deterministic")
	assert.Len(t, h1, 64, "SHA-256 hex is 64 characters")
}

func TestHash_ChangesWithOrder(t *testing.T) {
	a := validCatalog()
	b := validCatalog()
	b.Sites[1].Name, b.Sites[2].Name = b.Sites[2].Name, b.Sites[1].Name

	ha, err := a.Hash()
	require.NoError(t, err)
	hb, err := b.Hash()
	require.NoError(t, err)
	assert.NotEqual(t, ha, hb)
}

func TestHash_NFCNormalized(t *testing.T) {
	composed := validCatalog()
	composed.Sites[0].Name = "caf\u00e9"
	decomposed := validCatalog()
	decomposed.Sites[0].Name = "cafe\u0301"

	hc, err := composed.Hash()
	require.NoError(t, err)
	hd, err := decomposed.Hash()
	require.NoError(t, err)
	assert.Equal(t, hc, hd, "NFC and NFD spellings hash the same")
}

func TestFaviconURL(t *testing.T) {
	tests := []struct {
		template string
		url      string
		want     string
	}{
		{"", "https://go.dev/doc", "https://www.faviconextractor.com/favicon/go.dev?larger=true"},
		{"https://icons.example/{domain}.ico", "https://blog.csdn.net/x", "https://icons.example/blog.csdn.net.ico"},
		{"", "not a url", ""},
		{"", "://broken", ""},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.want, FaviconURL(tt.template, tt.url))
		})
	}
	assert.True(t, strings.Contains(DefaultIconAPI, "{domain}"))
}
