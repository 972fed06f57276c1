package main

import (
	"bufio"
	"errors"
	"fmt"
	"maps"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"comfyctl/internal/comfy"
	"comfyctl/internal/queue"
	"comfyctl/internal/stream"
	"comfyctl/internal/submit"
	"comfyctl/internal/workflow"
)

type submitOptions struct {
	promptsFile    string
	checkpoint     string
	width          int
	height         int
	batchSize      int
	steps          int
	filenamePrefix string
	image          string
	mask           string
	stopOnError    bool
	watch          bool
}

type submitOutput struct {
	ClientID string         `json:"client_id"`
	Report   submit.Report  `json:"report"`
	Tracking *stream.Result `json:"tracking,omitempty"`
}

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	opts := &submitOptions{}
	cmd := &cobra.Command{
		Use:   "submit [prompt...]",
		Short: "Queue one job per prompt using the workflow template",
		Long: "Queue one job per prompt. Each job gets a fresh random seed and a\n" +
			"filename prefix derived from its prompt. Prompts come from the\n" +
			"arguments and, with --prompts-file, one per line (blank lines and\n" +
			"lines starting with # are skipped).",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSubmit(cmd, ctx, opts, args)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.promptsFile, "prompts-file", "f", "", "File with one prompt per line")
	f.StringVar(&opts.checkpoint, "checkpoint", "", "Checkpoint name (default from config)")
	f.IntVar(&opts.width, "width", 0, "Image width (default from config)")
	f.IntVar(&opts.height, "height", 0, "Image height (default from config)")
	f.IntVar(&opts.batchSize, "batch", 0, "Images per job (default from config)")
	f.IntVar(&opts.steps, "steps", 0, "Sampler steps (default from config)")
	f.StringVar(&opts.filenamePrefix, "prefix", "", "Filename prefix for every job (default: the prompt text)")
	f.StringVar(&opts.image, "image", "", "Uploaded image name for the template's load image node")
	f.StringVar(&opts.mask, "mask", "", "Uploaded mask name for the template's load mask node")
	f.BoolVar(&opts.stopOnError, "stop-on-error", false, "Abort the batch on the first rejected prompt")
	f.BoolVarP(&opts.watch, "watch", "w", false, "Follow progress until the server queue drains")
	return cmd
}

func runSubmit(cmd *cobra.Command, ctx *commandContext, opts *submitOptions, args []string) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	prompts, err := collectPrompts(args, opts.promptsFile)
	if err != nil {
		return err
	}
	if len(prompts) == 0 {
		return errors.New("no prompts given; pass them as arguments or with --prompts-file")
	}

	binding, err := ctx.loadBinding()
	if err != nil {
		return err
	}
	base := workflow.JobParams{
		Checkpoint:     firstNonEmpty(opts.checkpoint, cfg.Workflow.Checkpoint),
		Width:          firstPositive(opts.width, cfg.Workflow.Width),
		Height:         firstPositive(opts.height, cfg.Workflow.Height),
		BatchSize:      firstPositive(opts.batchSize, cfg.Workflow.BatchSize),
		Steps:          firstPositive(opts.steps, cfg.Workflow.Steps),
		FilenamePrefix: strings.TrimSpace(opts.filenamePrefix),
		Image:          strings.TrimSpace(opts.image),
		Mask:           strings.TrimSpace(opts.mask),
	}

	client, err := ctx.newClient()
	if err != nil {
		return err
	}
	clientID := ctx.processClientID()

	// The stream is opened before submitting so no progress frame for the
	// new prompts can be missed.
	var conn *stream.Conn
	if opts.watch {
		conn, err = dialStream(cmd, ctx, client, clientID)
		if err != nil {
			return err
		}
		defer conn.Close()
	}

	store, err := ctx.openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	submitter := submit.New(client, binding, submit.Options{Ledger: store, Logger: ctx.log()})
	report, runErr := submitter.Run(commandCtx(cmd), submit.Batch{
		Prompts:     prompts,
		Base:        base,
		ClientID:    clientID,
		StopOnError: opts.stopOnError,
	})
	out := submitOutput{ClientID: clientID, Report: report}

	if !ctx.jsonOutput() {
		printSubmitReport(cmd, report)
	}

	if runErr == nil && opts.watch && len(report.Submitted) > 0 {
		result, err := track(cmd, ctx, client, conn, binding.Template())
		out.Tracking = &result
		if err != nil {
			runErr = err
		}
	}

	if ctx.jsonOutput() {
		if err := writeJSON(cmd, out); err != nil {
			return err
		}
	}
	if runErr != nil {
		return runErr
	}
	if len(report.Submitted) == 0 {
		return fmt.Errorf("none of %d prompts were accepted", len(prompts))
	}
	return nil
}

func printSubmitReport(cmd *cobra.Command, report submit.Report) {
	w := cmd.OutOrStdout()
	if len(report.Submitted) > 0 {
		rows := make([][]string, 0, len(report.Submitted))
		for _, s := range report.Submitted {
			rows = append(rows, []string{
				strconv.FormatInt(s.Number, 10),
				s.PromptID,
				strconv.FormatUint(s.Seed, 10),
				s.Prompt,
			})
		}
		fmt.Fprint(w, renderTable([]string{"#", "Prompt ID", "Seed", "Prompt"}, rows,
			[]columnAlignment{alignRight, alignLeft, alignRight, alignLeft}))
	}
	for _, f := range report.Failed {
		fmt.Fprintf(cmd.ErrOrStderr(), "Prompt %d rejected: %s\n", f.Index+1, describeSubmitFailure(f.Err))
	}
	fmt.Fprintf(w, "Queued %d of %d prompts\n", len(report.Submitted), len(report.Submitted)+len(report.Failed))
}

func describeSubmitFailure(err error) string {
	var subErr *comfy.SubmissionError
	if errors.As(err, &subErr) && len(subErr.NodeErrors) > 0 {
		ids := slices.Sorted(maps.Keys(subErr.NodeErrors))
		return fmt.Sprintf("%v (node errors: %s)", err, strings.Join(ids, ", "))
	}
	return err.Error()
}

// collectPrompts merges argument prompts with the lines of path.
func collectPrompts(args []string, path string) ([]string, error) {
	prompts := make([]string, 0, len(args))
	for _, arg := range args {
		if p := strings.TrimSpace(arg); p != "" {
			prompts = append(prompts, p)
		}
	}
	if path == "" {
		return prompts, nil
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open prompts file: %w", err)
	}
	defer file.Close()
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		prompts = append(prompts, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read prompts file: %w", err)
	}
	return prompts, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func firstPositive(values ...int) int {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}

var _ submit.Ledger = (*queue.Store)(nil)
