// Package render serializes a catalog.
//
// Every renderer is a pure function of the catalog: the same catalog always
// renders to the same bytes.
//
//   - SQL writes a NaviHive relational insert script.
//   - Mock writes TypeScript mockGroups / mockSites / mockConfigs literals.
//   - JSON writes the canonical {groups, sites, configs} document, which
//     ReadJSON reads back.
package render
