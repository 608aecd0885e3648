// Package logs reads the dealdesk log file for the CLI's logs command: the
// last N lines, optionally filtered to one request id, and optionally
// followed as new lines are appended.
package logs
