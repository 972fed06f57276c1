package workflow

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"

	"comfyctl/internal/config"
	"comfyctl/internal/logging"
)

// Titles names the nodes a job writes to. LoadImage and LoadMask are
// optional; the rest must exist in the template.
type Titles struct {
	Checkpoint     string
	PositivePrompt string
	Latent         string
	Sampler        string
	Save           string
	LoadImage      string
	LoadMask       string
}

// TitlesFromConfig converts configured titles.
func TitlesFromConfig(t config.Titles) Titles {
	return Titles{
		Checkpoint:     t.Checkpoint,
		PositivePrompt: t.PositivePrompt,
		Latent:         t.Latent,
		Sampler:        t.Sampler,
		Save:           t.Save,
		LoadImage:      t.LoadImage,
		LoadMask:       t.LoadMask,
	}
}

// JobParams are the per-job values written into the template.
type JobParams struct {
	Prompt         string `json:"prompt" validate:"required"`
	Checkpoint     string `json:"checkpoint" validate:"required"`
	Width          int    `json:"width" validate:"gt=0"`
	Height         int    `json:"height" validate:"gt=0"`
	BatchSize      int    `json:"batch_size" validate:"gt=0"`
	Steps          int    `json:"steps" validate:"gte=1"`
	Seed           uint64 `json:"seed" validate:"gte=1,lte=18446744073709551614"`
	FilenamePrefix string `json:"filename_prefix,omitempty" validate:"max=100"`
	Image          string `json:"image,omitempty"`
	Mask           string `json:"mask,omitempty"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the parameters without touching a graph.
func (p JobParams) Validate() error {
	err := validate.Struct(p)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	problems := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		if fe.Param() != "" {
			problems = append(problems, fmt.Sprintf("%s fails %s=%s", fe.Field(), fe.Tag(), fe.Param()))
		} else {
			problems = append(problems, fmt.Sprintf("%s is %s", fe.Field(), fe.Tag()))
		}
	}
	return fmt.Errorf("%w: %s", ErrInvalidParams, strings.Join(problems, "; "))
}

type inputWrite struct {
	id    string
	input string
	value any
}

// Binding holds the node identifiers resolved from a template.
type Binding struct {
	template *Graph
	titles   Titles

	checkpoint string
	prompt     string
	latent     string
	sampler    string
	save       string
	loadImage  string
	loadMask   string
}

// BindOption configures Bind.
type BindOption func(*bindSettings)

type bindSettings struct {
	logger *slog.Logger
}

// WithLogger receives a warning for each configured optional title that has
// no node in the template.
func WithLogger(logger *slog.Logger) BindOption {
	return func(s *bindSettings) { s.logger = logger }
}

// Bind resolves every titled node once. All missing required titles are
// reported together in a *MissingNodesError. Optional titles without a node
// are logged and left unbound; Apply rejects jobs that need them.
func Bind(graph *Graph, titles Titles, opts ...BindOption) (*Binding, error) {
	if graph == nil {
		return nil, &TemplateLoadError{Err: errors.New("nil graph")}
	}
	var settings bindSettings
	for _, opt := range opts {
		opt(&settings)
	}
	logger := logging.NewComponentLogger(settings.logger, "workflow")

	lookup := func(title string) (string, bool) {
		node, ok := graph.FindNodeByTitle(title)
		if !ok {
			return "", false
		}
		return node.ID, true
	}

	b := &Binding{template: graph, titles: titles}
	var missing []string
	required := []struct {
		title string
		slot  *string
	}{
		{titles.Checkpoint, &b.checkpoint},
		{titles.PositivePrompt, &b.prompt},
		{titles.Latent, &b.latent},
		{titles.Sampler, &b.sampler},
		{titles.Save, &b.save},
	}
	for _, req := range required {
		id, ok := lookup(req.title)
		if !ok {
			missing = append(missing, req.title)
			continue
		}
		*req.slot = id
	}
	if len(missing) > 0 {
		return nil, &MissingNodesError{Titles: missing}
	}

	optional := []struct {
		title string
		slot  *string
	}{
		{titles.LoadImage, &b.loadImage},
		{titles.LoadMask, &b.loadMask},
	}
	for _, opt := range optional {
		if opt.title == "" {
			continue
		}
		id, ok := lookup(opt.title)
		if !ok {
			logging.WarnWithContext(logger, "optional node not found in template", "template_node_missing",
				logging.String("title", opt.title),
				logging.String(logging.FieldErrorHint, "check workflow.titles against the node titles in the template"),
				logging.String(logging.FieldImpact, "jobs that pass this input will be rejected"))
			continue
		}
		*opt.slot = id
	}
	return b, nil
}

// Template returns the graph the binding was resolved against.
func (b *Binding) Template() *Graph {
	return b.template
}

// SupportsImage reports whether the template has an image loader.
func (b *Binding) SupportsImage() bool { return b.loadImage != "" }

// SupportsMask reports whether the template has a mask loader.
func (b *Binding) SupportsMask() bool { return b.loadMask != "" }

// Build validates p and returns a fresh copy of the template with p applied.
func (b *Binding) Build(p JobParams) (*Graph, error) {
	graph := b.template.Clone()
	if err := b.Apply(graph, p); err != nil {
		return nil, err
	}
	return graph, nil
}

// Apply validates p and writes it into graph, which must share the
// template's node identifiers.
func (b *Binding) Apply(graph *Graph, p JobParams) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if p.Image != "" && b.loadImage == "" {
		return &MissingNodesError{Titles: []string{b.titles.LoadImage}}
	}
	if p.Mask != "" && b.loadMask == "" {
		return &MissingNodesError{Titles: []string{b.titles.LoadMask}}
	}

	set := func(id, input string, value any) error {
		node, ok := graph.Node(id)
		if !ok {
			return fmt.Errorf("%w: node %s", ErrMissingNode, id)
		}
		node.Set(input, value)
		return nil
	}

	writes := []inputWrite{
		{b.checkpoint, "ckpt_name", p.Checkpoint},
		{b.prompt, "text", p.Prompt},
		{b.latent, "width", p.Width},
		{b.latent, "height", p.Height},
		{b.latent, "batch_size", p.BatchSize},
		{b.sampler, "seed", p.Seed},
		{b.sampler, "steps", p.Steps},
	}
	if p.FilenamePrefix != "" {
		writes = append(writes, inputWrite{b.save, "filename_prefix", p.FilenamePrefix})
	}
	if p.Image != "" {
		writes = append(writes, inputWrite{b.loadImage, "image", p.Image})
	}
	if p.Mask != "" {
		writes = append(writes, inputWrite{b.loadMask, "image", p.Mask})
	}
	for _, w := range writes {
		if err := set(w.id, w.input, w.value); err != nil {
			return err
		}
	}
	return nil
}
