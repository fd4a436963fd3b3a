// Package store loads catalogs into a SQLite navigation database.
//
// The schema matches what the rendered SQL script expects: groups, sites and
// configs tables with AUTOINCREMENT ids. A catalog can be loaded directly
// with ReplaceCatalog or by executing a rendered script with ApplyScript;
// both leave the database holding exactly one catalog.
//
// # Database Configuration
//
//   - WAL mode
//   - synchronous=NORMAL
//   - busy_timeout=5000
//   - foreign_keys=ON
//
// Schema changes are tracked with PRAGMA user_version.
package store
