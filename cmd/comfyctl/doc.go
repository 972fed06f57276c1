// Command comfyctl queues image-generation jobs on a ComfyUI-compatible
// server, follows their progress over the WebSocket stream, and exposes the
// server's queue, history, upload and catalog endpoints as subcommands.
//
// Jobs accepted by the server are recorded in a local SQLite ledger so later
// invocations can list and reconcile them against the server's queue and
// history.
package main
