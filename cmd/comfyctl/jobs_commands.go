package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"comfyctl/internal/queue"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	var statuses []string
	var limit int
	var sync bool
	jobsCmd := &cobra.Command{
		Use:   "jobs",
		Short: "List jobs recorded by this client",
		Long: "List jobs recorded in the local ledger. With --sync the ledger is\n" +
			"first reconciled against the server's queue and history.",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := parseStatuses(statuses)
			if err != nil {
				return err
			}
			return ctx.withStore(func(store *queue.Store) error {
				c := commandCtx(cmd)
				if sync {
					client, err := ctx.newClient()
					if err != nil {
						return err
					}
					report, err := syncLedger(c, client, store)
					if err != nil {
						return err
					}
					if !ctx.jsonOutput() {
						fmt.Fprintf(cmd.ErrOrStderr(), "Reconciled %d jobs, %d changed\n", report.Checked, len(report.Changes))
					}
				}
				jobs, err := store.List(c, queue.ListOptions{Statuses: filter, Limit: limit})
				if err != nil {
					return err
				}
				if jobs == nil {
					jobs = []*queue.Job{}
				}
				return emit(cmd, ctx, jobs, func() error {
					if len(jobs) == 0 {
						fmt.Fprintln(cmd.OutOrStdout(), "No jobs recorded")
						return nil
					}
					colorize := shouldColorize(cmd.OutOrStdout())
					rows := make([][]string, 0, len(jobs))
					for _, j := range jobs {
						rows = append(rows, []string{
							strconv.FormatInt(j.Number, 10),
							j.PromptID,
							renderJobStatus(j.Status, colorize),
							humanize.Time(j.CreatedAt),
							j.PromptText,
						})
					}
					fmt.Fprint(cmd.OutOrStdout(), renderTable([]string{"#", "Prompt ID", "Status", "Queued", "Prompt"}, rows,
						[]columnAlignment{alignRight}))
					return nil
				})
			})
		},
	}
	jobsCmd.Flags().StringSliceVar(&statuses, "status", nil, "Only show jobs in these statuses")
	jobsCmd.Flags().IntVarP(&limit, "limit", "n", 0, "Show at most N jobs (newest first)")
	jobsCmd.Flags().BoolVar(&sync, "sync", false, "Reconcile with the server before listing")

	jobsCmd.AddCommand(newJobsShowCommand(ctx))
	jobsCmd.AddCommand(newJobsStatsCommand(ctx))
	jobsCmd.AddCommand(newJobsClearCommand(ctx))
	return jobsCmd
}

func newJobsShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <prompt-id>",
		Short: "Show one recorded job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *queue.Store) error {
				job, err := store.GetByPromptID(commandCtx(cmd), strings.TrimSpace(args[0]))
				if err != nil {
					return err
				}
				return emit(cmd, ctx, job, func() error {
					pairs := [][2]string{
						{"Prompt ID", job.PromptID},
						{"Queue number", strconv.FormatInt(job.Number, 10)},
						{"Client ID", job.ClientID},
						{"Status", renderJobStatus(job.Status, shouldColorize(cmd.OutOrStdout()))},
						{"Prompt", job.PromptText},
						{"Seed", strconv.FormatUint(job.Seed, 10)},
						{"Filename prefix", job.FilenamePrefix},
						{"Queued", fmt.Sprintf("%s (%s)", job.CreatedAt.Format("2006-01-02 15:04:05"), humanize.Time(job.CreatedAt))},
						{"Updated", humanize.Time(job.UpdatedAt)},
					}
					if job.ErrorMessage != "" {
						pairs = append(pairs, [2]string{"Message", job.ErrorMessage})
					}
					if len(job.Outputs) > 0 {
						pairs = append(pairs, [2]string{"Outputs", strings.Join(job.Outputs, "\n")})
					}
					fmt.Fprint(cmd.OutOrStdout(), renderKeyValues(pairs))
					return nil
				})
			})
		},
	}
}

func newJobsStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Count recorded jobs by status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *queue.Store) error {
				stats, err := store.Stats(commandCtx(cmd))
				if err != nil {
					return err
				}
				return emit(cmd, ctx, stats, func() error {
					rows := make([][]string, 0, len(stats))
					for _, status := range queue.AllStatuses() {
						if n := stats[status]; n > 0 {
							rows = append(rows, []string{statusLabel(string(status)), strconv.Itoa(n)})
						}
					}
					if len(rows) == 0 {
						fmt.Fprintln(cmd.OutOrStdout(), "No jobs recorded")
						return nil
					}
					fmt.Fprint(cmd.OutOrStdout(), renderTable([]string{"Status", "Count"}, rows,
						[]columnAlignment{alignLeft, alignRight}))
					return nil
				})
			})
		},
	}
}

func newJobsClearCommand(ctx *commandContext) *cobra.Command {
	var statuses []string
	var all bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Forget finished jobs (server state is untouched)",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := parseStatuses(statuses)
			if err != nil {
				return err
			}
			if len(filter) == 0 && !all {
				filter = []queue.Status{queue.StatusCompleted, queue.StatusFailed, queue.StatusDeleted, queue.StatusMissing}
			}
			return ctx.withStore(func(store *queue.Store) error {
				removed, err := store.Clear(commandCtx(cmd), filter...)
				if err != nil {
					return err
				}
				return emit(cmd, ctx, map[string]int64{"removed": removed}, func() error {
					fmt.Fprintf(cmd.OutOrStdout(), "Removed %d jobs from the ledger\n", removed)
					return nil
				})
			})
		},
	}
	cmd.Flags().StringSliceVar(&statuses, "status", nil, "Only remove jobs in these statuses")
	cmd.Flags().BoolVar(&all, "all", false, "Remove every job, including queued and running ones")
	return cmd
}

func parseStatuses(values []string) ([]queue.Status, error) {
	out := make([]queue.Status, 0, len(values))
	for _, v := range values {
		status, err := queue.ParseStatus(v)
		if err != nil {
			return nil, err
		}
		out = append(out, status)
	}
	return out, nil
}

