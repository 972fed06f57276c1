// Package queue keeps a local SQLite ledger of submitted jobs.
//
// The server forgets nothing about a prompt until its history is cleared,
// but it does not know which prompts this machine sent or with what text
// and seed. The Store records every accepted submission and Reconcile folds
// the server's queue snapshot and history back into the ledger so `jobs`
// can show where each prompt ended up.
//
// The database is transient convenience state. Schema changes bump
// PRAGMA user_version; users delete the ledger to adopt the new schema.
package queue
