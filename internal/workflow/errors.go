package workflow

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrTemplateLoad marks failures to read or parse the workflow template.
	ErrTemplateLoad = errors.New("workflow template load failed")
	// ErrMissingNode marks bindings whose titled node is absent from the graph.
	ErrMissingNode = errors.New("workflow node not found")
	// ErrInvalidParams marks job parameters rejected by validation.
	ErrInvalidParams = errors.New("invalid job parameters")
)

// TemplateLoadError reports why a template could not be loaded. It matches
// both ErrTemplateLoad and the underlying cause with errors.Is.
type TemplateLoadError struct {
	Path string
	Err  error
}

func (e *TemplateLoadError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("load workflow template: %v", e.Err)
	}
	return fmt.Sprintf("load workflow template %s: %v", e.Path, e.Err)
}

func (e *TemplateLoadError) Unwrap() []error {
	return []error{ErrTemplateLoad, e.Err}
}

// MissingNodesError lists every required title that had no matching node.
type MissingNodesError struct {
	Titles []string
}

func (e *MissingNodesError) Error() string {
	quoted := make([]string, len(e.Titles))
	for i, title := range e.Titles {
		quoted[i] = fmt.Sprintf("%q", title)
	}
	return fmt.Sprintf("%v: %s", ErrMissingNode, strings.Join(quoted, ", "))
}

func (e *MissingNodesError) Unwrap() error {
	return ErrMissingNode
}
