package submit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"comfyctl/internal/comfy"
	"comfyctl/internal/logging"
	"comfyctl/internal/queue"
	"comfyctl/internal/workflow"
)

// PromptQueuer submits one graph.
type PromptQueuer interface {
	Submit(ctx context.Context, graph any, clientID string) (*comfy.PromptResponse, error)
}

// Ledger records accepted jobs.
type Ledger interface {
	Record(ctx context.Context, job queue.NewJob) (*queue.Job, error)
}

// ErrEmptyBatch reports a batch without prompts.
var ErrEmptyBatch = errors.New("batch has no prompts")

// Batch is a list of prompts sharing the same base parameters.
type Batch struct {
	Prompts []string
	// Base supplies every parameter except Prompt and Seed. A non-empty
	// FilenamePrefix overrides the per-prompt default.
	Base        workflow.JobParams
	ClientID    string
	StopOnError bool
}

// Submission is one accepted job.
type Submission struct {
	Index          int    `json:"index"`
	Prompt         string `json:"prompt"`
	PromptID       string `json:"prompt_id"`
	Number         int64  `json:"number"`
	Seed           uint64 `json:"seed"`
	FilenamePrefix string `json:"filename_prefix"`
}

// Failure is one rejected job.
type Failure struct {
	Index  int    `json:"index"`
	Prompt string `json:"prompt"`
	Err    error  `json:"-"`
	Reason string `json:"reason"`
}

// Report summarises a batch.
type Report struct {
	Submitted []Submission `json:"submitted"`
	Failed    []Failure    `json:"failed,omitempty"`
}

// Options configures a Submitter.
type Options struct {
	Ledger Ledger
	Logger *slog.Logger
	// Seeds overrides the seed source; nil uses workflow.RandomSeed.
	Seeds func() uint64
}

// Submitter turns prompts into queued jobs.
type Submitter struct {
	queuer  PromptQueuer
	binding *workflow.Binding
	ledger  Ledger
	logger  *slog.Logger
	seeds   func() uint64
}

// New constructs a Submitter.
func New(queuer PromptQueuer, binding *workflow.Binding, opts Options) *Submitter {
	seeds := opts.Seeds
	if seeds == nil {
		seeds = workflow.RandomSeed
	}
	return &Submitter{
		queuer:  queuer,
		binding: binding,
		ledger:  opts.Ledger,
		logger:  logging.NewComponentLogger(opts.Logger, "submitter"),
		seeds:   seeds,
	}
}

// Run submits every prompt in order. The returned error is non-nil only
// when the batch was cut short, either by StopOnError or by ctx.
func (s *Submitter) Run(ctx context.Context, batch Batch) (Report, error) {
	var report Report
	if len(batch.Prompts) == 0 {
		return report, ErrEmptyBatch
	}
	for i, prompt := range batch.Prompts {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		sub, err := s.submitOne(ctx, i, prompt, batch)
		if err != nil {
			report.Failed = append(report.Failed, Failure{Index: i, Prompt: prompt, Err: err, Reason: err.Error()})
			logging.WarnWithContext(s.logger, "prompt rejected", "submission_failed",
				logging.Int("index", i),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check the workflow titles and server log"),
				logging.String(logging.FieldImpact, "prompt was not queued"))
			if batch.StopOnError {
				return report, fmt.Errorf("batch stopped at prompt %d: %w", i+1, err)
			}
			continue
		}
		report.Submitted = append(report.Submitted, sub)
	}
	return report, nil
}

func (s *Submitter) submitOne(ctx context.Context, index int, prompt string, batch Batch) (Submission, error) {
	prompt = strings.TrimSpace(prompt)
	params := batch.Base
	params.Prompt = prompt
	params.Seed = s.seeds()
	if params.FilenamePrefix == "" {
		params.FilenamePrefix = workflow.TruncatePrefix(prompt)
	} else {
		params.FilenamePrefix = workflow.TruncatePrefix(params.FilenamePrefix)
	}

	graph, err := s.binding.Build(params)
	if err != nil {
		return Submission{}, err
	}
	resp, err := s.queuer.Submit(ctx, graph, batch.ClientID)
	if err != nil {
		return Submission{}, err
	}

	sub := Submission{
		Index:          index,
		Prompt:         prompt,
		PromptID:       resp.PromptID,
		Number:         resp.Number,
		Seed:           params.Seed,
		FilenamePrefix: params.FilenamePrefix,
	}
	s.logger.Info("prompt queued",
		logging.String(logging.FieldPromptID, sub.PromptID),
		logging.Int64("number", sub.Number),
		logging.Uint64("seed", sub.Seed))

	if s.ledger != nil {
		if _, err := s.ledger.Record(ctx, queue.NewJob{
			PromptID:       sub.PromptID,
			ClientID:       batch.ClientID,
			Number:         sub.Number,
			PromptText:     prompt,
			Seed:           sub.Seed,
			FilenamePrefix: sub.FilenamePrefix,
		}); err != nil {
			logging.WarnWithContext(s.logger, "ledger record failed", "ledger_write",
				logging.String(logging.FieldPromptID, sub.PromptID),
				logging.Error(err),
				logging.String(logging.FieldImpact, "job is queued but missing from `comfyctl jobs`"))
		}
	}
	return sub, nil
}
