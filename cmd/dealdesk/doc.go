// Package main hosts the dealdesk CLI entrypoint and command graph.
//
// The Cobra-based command tree binds terminal invocations to the workflow
// controller: one-shot processing of a PDF, an interactive session that
// observes controller state, service status checks, the local attempt
// history, and configuration scaffolding. It centralizes configuration
// resolution and logging setup so subcommands can focus on presentation.
//
// Keep this package lean: new behavior belongs in the internal packages and
// is surfaced here through dedicated commands or flags.
package main
