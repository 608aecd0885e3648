// Package entrytool is the HTTP client for the deal-entry extraction and
// export service.
//
// Extract uploads a PDF as multipart form data, Export forwards a previous
// extraction result unchanged as JSON, and Health/SupportedFormats query the
// service's informational endpoints. Every response body is checked against
// an embedded JSON schema before it is decoded; bodies that fail are reported
// with services.ErrMalformedResponse. Network failures and non-2xx statuses
// carry services.ErrTransport, and deadline overruns also carry
// services.ErrTimeout.
package entrytool
