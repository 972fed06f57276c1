// Package submit queues batches of prompts against the bound workflow.
//
// Each prompt gets a fresh clone of the template with its own random seed
// and a filename prefix derived from the prompt text. Accepted jobs are
// written to the local ledger. A batch either stops at the first rejected
// job or collects failures and carries on, depending on Batch.StopOnError.
package submit
