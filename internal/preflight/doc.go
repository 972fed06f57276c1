// Package preflight provides readiness checks for the template, local
// directories and the generation server that comfyctl depends on.
//
// The `doctor` command prints every result; `submit` and `watch` run the
// template check implicitly when they bind the workflow. Each check makes
// at most one attempt.
package preflight
