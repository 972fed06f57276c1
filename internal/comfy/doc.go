// Package comfy is the HTTP client for the generation server's job API.
//
// Every call is attempted exactly once; there are no retries. Failures come
// back as *RequestError carrying the HTTP status and the server's reason
// text (Status 0 for transport failures), except Submit which reports
// *SubmissionError so batch callers can apply their stop-or-continue policy.
//
// Endpoints covered:
//
//   - POST /prompt, GET /prompt
//   - GET|POST /queue, POST /interrupt
//   - GET /history, GET /history/{id}
//   - GET /system_stats, /object_info[/{class}], /embeddings, /extensions
//   - POST /upload/image, POST /upload/mask, GET /view
//
// Queue entries and history records arrive as positional JSON arrays; the
// UnmarshalJSON methods here decode them into named fields so callers never
// index into raw slices.
package comfy
