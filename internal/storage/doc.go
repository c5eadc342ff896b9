// Package storage persists the live experiment list.
//
// It currently supports:
//   - A JSON file backend (default)
//   - An optional SQLite backend (build with -tags sqlite)
package storage
