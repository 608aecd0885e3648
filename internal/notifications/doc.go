// Package notifications delivers workflow events via pluggable notifiers.
//
// The default implementation publishes to ntfy using the topic configured in
// config.toml and returns a no-op service when no topic is set. Per-event
// toggles ([notifications] extraction, export, errors) let users silence
// individual milestones without removing the topic.
//
// Workflow code depends only on the Service interface.
package notifications
