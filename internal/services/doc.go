// Package services defines shared utilities consumed by the workflow
// controller and the external service integrations.
//
// Key responsibilities:
//   - Context helpers that stamp request identifiers and slot names for
//     logging and tracing.
//   - Structured error markers plus the Wrap helper that tag failures so the
//     controller and the CLI can classify them with errors.Is.
//
// Use these helpers when wiring new integrations so operational behaviour
// (error classification, observability) stays uniform.
package services
