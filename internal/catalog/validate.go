package catalog

import (
	"errors"
	"fmt"
	"sort"
)

// InvariantCode categorizes catalog invariant violations.
type InvariantCode string

const (
	// ErrDuplicateURL indicates two sites share a URL.
	ErrDuplicateURL InvariantCode = "DUPLICATE_URL"

	// ErrDanglingGroup indicates a site references a group that is not present.
	ErrDanglingGroup InvariantCode = "DANGLING_GROUP"

	// ErrOrderGap indicates a group's site order numbers are not 0..n-1.
	ErrOrderGap InvariantCode = "ORDER_GAP"

	// ErrGroupIdentity indicates group ids/order numbers are not 1..G / id-1,
	// or a group name is repeated.
	ErrGroupIdentity InvariantCode = "GROUP_IDENTITY"

	// ErrSiteIdentity indicates site ids are not 1..N in catalog order.
	ErrSiteIdentity InvariantCode = "SITE_IDENTITY"

	// ErrDuplicateConfig indicates a configuration key appears twice.
	ErrDuplicateConfig InvariantCode = "DUPLICATE_CONFIG"
)

// InvariantError describes one violated catalog invariant.
type InvariantError struct {
	Code    InvariantCode
	Message string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsInvariantError reports whether err is (or wraps) an InvariantError with
// the given code.
func IsInvariantError(err error, code InvariantCode) bool {
	var ie *InvariantError
	return errors.As(err, &ie) && ie.Code == code
}

func violation(code InvariantCode, format string, args ...any) error {
	return &InvariantError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Validate checks every catalog invariant and returns all violations found.
// A nil slice means the catalog is consistent.
func (c *Catalog) Validate() []error {
	var errs []error

	groupIDs := make(map[int64]bool, len(c.Groups))
	groupNames := make(map[string]bool, len(c.Groups))
	for i, g := range c.Groups {
		want := int64(i + 1)
		if g.ID != want {
			errs = append(errs, violation(ErrGroupIdentity, "group %q has id %d, want %d", g.Name, g.ID, want))
		}
		if g.OrderNum != int(g.ID)-1 {
			errs = append(errs, violation(ErrGroupIdentity, "group %q has order_num %d, want %d", g.Name, g.OrderNum, g.ID-1))
		}
		if groupNames[g.Name] {
			errs = append(errs, violation(ErrGroupIdentity, "group name %q repeated", g.Name))
		}
		groupNames[g.Name] = true
		groupIDs[g.ID] = true
	}

	urls := make(map[string]int64, len(c.Sites))
	orders := make(map[int64][]int)
	for i, s := range c.Sites {
		if want := int64(i + 1); s.ID != want {
			errs = append(errs, violation(ErrSiteIdentity, "site %q has id %d, want %d", s.URL, s.ID, want))
		}
		if prev, ok := urls[s.URL]; ok {
			errs = append(errs, violation(ErrDuplicateURL, "url %q on sites %d and %d", s.URL, prev, s.ID))
		} else {
			urls[s.URL] = s.ID
		}
		if !groupIDs[s.GroupID] {
			errs = append(errs, violation(ErrDanglingGroup, "site %d references missing group %d", s.ID, s.GroupID))
			continue
		}
		orders[s.GroupID] = append(orders[s.GroupID], s.OrderNum)
	}

	gids := make([]int64, 0, len(orders))
	for gid := range orders {
		gids = append(gids, gid)
	}
	sort.Slice(gids, func(i, j int) bool { return gids[i] < gids[j] })
	for _, gid := range gids {
		nums := orders[gid]
		for i, n := range nums {
			if n != i {
				errs = append(errs, violation(ErrOrderGap, "group %d: site order_num sequence %v is not 0..%d", gid, nums, len(nums)-1))
				break
			}
		}
	}

	keys := make(map[string]bool, len(c.Configs))
	for _, kv := range c.Configs {
		if keys[kv.Key] {
			errs = append(errs, violation(ErrDuplicateConfig, "config key %q repeated", kv.Key))
		}
		keys[kv.Key] = true
	}

	return errs
}
