package catalog

// DefaultLabel is the group assigned when no classifier has an opinion.
const DefaultLabel = "Other"

// Record is one bookmark as loaded from a snapshot.
// Records are values: classification wraps them in Classified instead of
// mutating them.
type Record struct {
	Name        string `json:"name"`
	URL         string `json:"url"`
	Icon        string `json:"icon"`
	Description string `json:"description"`
	Notes       string `json:"notes"`
	IsPublic    int    `json:"is_public"`

	// Source is the name of the snapshot the record was taken from.
	Source string `json:"source,omitempty"`

	// SourceGroup is the group name the record had inside its snapshot.
	// Empty when the snapshot carried no grouping for it.
	SourceGroup string `json:"source_group,omitempty"`
}

// Via records which strategy produced a classification.
type Via string

const (
	ViaRoot     Via = "root"
	ViaDomain   Via = "domain"
	ViaRule     Via = "rule"
	ViaOracle   Via = "oracle"
	ViaFallback Via = "fallback"
	ViaSource   Via = "source"
	ViaDefault  Via = "default"
)

// Classified binds a record to the group name chosen for it.
type Classified struct {
	Record Record `json:"record"`
	Group  string `json:"group"`
	Via    Via    `json:"via"`
}

// GroupMeta carries per-group attributes merged from the source snapshots.
type GroupMeta struct {
	Name     string `json:"name"`
	IsPublic int    `json:"is_public"`
}

// Group is a final catalog group. ID is 1-based and OrderNum = ID-1.
type Group struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	OrderNum int    `json:"order_num"`
	IsPublic int    `json:"is_public"`
}

// Site is a final catalog entry bound to exactly one group.
type Site struct {
	ID          int64  `json:"id"`
	GroupID     int64  `json:"group_id"`
	Name        string `json:"name"`
	URL         string `json:"url"`
	Icon        string `json:"icon"`
	Description string `json:"description"`
	Notes       string `json:"notes"`
	OrderNum    int    `json:"order_num"`
	IsPublic    int    `json:"is_public"`
}

// Catalog is the canonical output of the core: ordered groups, ordered sites
// and a flat configuration map.
type Catalog struct {
	Groups  []Group `json:"groups"`
	Sites   []Site  `json:"sites"`
	Configs Configs `json:"configs"`
}

// GroupByID returns the group with the given id, or nil.
func (c *Catalog) GroupByID(id int64) *Group {
	for i := range c.Groups {
		if c.Groups[i].ID == id {
			return &c.Groups[i]
		}
	}
	return nil
}

// SitesIn returns the sites of a group in catalog order.
func (c *Catalog) SitesIn(groupID int64) []Site {
	var out []Site
	for _, s := range c.Sites {
		if s.GroupID == groupID {
			out = append(out, s)
		}
	}
	return out
}

// MemberCounts returns the number of sites per group id.
func (c *Catalog) MemberCounts() map[int64]int {
	counts := make(map[int64]int, len(c.Groups))
	for _, s := range c.Sites {
		counts[s.GroupID]++
	}
	return counts
}
