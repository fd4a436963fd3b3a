// Package snapshot loads exported bookmark snapshots.
//
// A snapshot is a JSON document produced by a navigation site export. Two
// shapes are accepted:
//
//   - flat: top-level "groups" and "sites", sites pointing at groups by group_id
//   - nested: "groups" each carrying its own "sites" list
//
// Every document is parsed with the CUE JSON decoder and unified with the
// embedded #Snapshot schema before any field is read, so structural problems
// (missing name/url, wrong types) surface as positioned errors. All loader
// errors are fatal for the run.
package snapshot
