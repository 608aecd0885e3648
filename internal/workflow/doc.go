// Package workflow owns the client-side upload/export state machine.
//
// The Controller holds the selected file, the in-flight request phase, the
// latest extraction and export results, and the last user-facing error. Every
// transition happens under one lock, so callers on any goroutine see a
// consistent State. Requests run asynchronously and are returned as Tasks;
// each slot (upload, export) carries a generation counter so responses that
// arrive after a reset, a new selection, or a dismissal are discarded instead
// of overwriting newer state.
//
// Host UIs bind through Subscribe and the operation methods; they never
// mutate State directly. Optional Recorder and notifications.Service hooks
// observe finished requests without influencing transitions.
package workflow
