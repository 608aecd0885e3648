// Package document models the files dealdesk submits and the results the
// extraction and export services return.
//
// Probe turns a filesystem path into a File candidate (name, size, MIME type
// confirmed by content sniffing, best-effort page count). ExtractionResult
// keeps the service response verbatim so it can be forwarded unchanged to the
// export endpoint, while exposing the deal summary fields the CLI renders.
// Display helpers format absent values as "N/A" and turn service doc-type
// identifiers into readable labels.
package document
