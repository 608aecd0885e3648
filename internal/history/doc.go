// Package history journals finished extraction and export attempts in
// SQLite so the CLI can list what was sent to the service and how it ended.
//
// The journal never feeds state back into the workflow controller; a fresh
// controller always starts empty. Writers in separate processes are
// serialized with an advisory file lock next to the database. Schema changes
// bump schemaVersion in schema.go; users clear the journal to adopt them.
package history
