// Package workflow loads the API-format workflow template and binds job
// parameters onto it.
//
// A Graph is parsed once from the persisted template and cloned for every
// submission so batch iterations never alias. Nodes are located by their
// `_meta.title` using case-insensitive matching; the first node in
// numeric-aware key order wins when titles repeat.
//
// Bind resolves every node a job needs up front and reports all missing
// titles together. The resulting Binding validates JobParams and writes
// them into a cloned graph, so a job either reaches the server fully
// parameterised or not at all.
package workflow
