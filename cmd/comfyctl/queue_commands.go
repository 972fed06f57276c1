package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"comfyctl/internal/comfy"
	"comfyctl/internal/logging"
	"comfyctl/internal/queue"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the server queue",
	}
	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueClearCommand(ctx))
	queueCmd.AddCommand(newQueueDeleteCommand(ctx))
	queueCmd.AddCommand(newQueueRemainingCommand(ctx))
	return queueCmd
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "Show running and pending jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *comfy.Client) error {
				snapshot, err := client.Queue(commandCtx(cmd))
				if err != nil {
					return err
				}
				return emit(cmd, ctx, snapshot, func() error {
					rows := queueRows(snapshot)
					if len(rows) == 0 {
						fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
						return nil
					}
					fmt.Fprint(cmd.OutOrStdout(), renderTable([]string{"#", "State", "Prompt ID"}, rows,
						[]columnAlignment{alignRight, alignLeft, alignLeft}))
					return nil
				})
			})
		},
	}
}

func queueRows(snapshot *comfy.QueueSnapshot) [][]string {
	rows := make([][]string, 0, len(snapshot.Running)+len(snapshot.Pending))
	for _, e := range snapshot.Running {
		rows = append(rows, []string{strconv.FormatInt(e.Number, 10), "Running", e.PromptID})
	}
	for _, e := range snapshot.Pending {
		rows = append(rows, []string{strconv.FormatInt(e.Number, 10), "Pending", e.PromptID})
	}
	return rows
}

func newQueueClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every pending job (the running job is not interrupted)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *comfy.Client) error {
				c := commandCtx(cmd)
				snapshot, err := client.Queue(c)
				if err != nil {
					return err
				}
				if err := client.ClearQueue(c); err != nil {
					return err
				}
				for _, e := range snapshot.Pending {
					markDeleted(cmd, ctx, e.PromptID)
				}
				return emit(cmd, ctx, map[string]int{"cleared": len(snapshot.Pending)}, func() error {
					fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d pending jobs\n", len(snapshot.Pending))
					return nil
				})
			})
		},
	}
}

type deleteOutcome struct {
	Number   int64  `json:"number"`
	PromptID string `json:"prompt_id,omitempty"`
	Deleted  bool   `json:"deleted"`
	Notice   string `json:"notice,omitempty"`
}

func newQueueDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <number>...",
		Short: "Remove pending jobs by queue number",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			numbers := make([]int64, 0, len(args))
			for _, arg := range args {
				n, err := strconv.ParseInt(arg, 10, 64)
				if err != nil {
					return fmt.Errorf("invalid queue number %q", arg)
				}
				numbers = append(numbers, n)
			}
			return ctx.withClient(func(client *comfy.Client) error {
				c := commandCtx(cmd)
				snapshot, err := client.Queue(c)
				if err != nil {
					return err
				}
				outcomes := make([]deleteOutcome, 0, len(numbers))
				for _, n := range numbers {
					promptID, err := client.DeleteQueueItem(c, snapshot, n)
					switch {
					case errors.Is(err, comfy.ErrNotFoundInQueue):
						outcomes = append(outcomes, deleteOutcome{Number: n, Notice: "not pending (running or finished)"})
					case err != nil:
						return err
					default:
						markDeleted(cmd, ctx, promptID)
						outcomes = append(outcomes, deleteOutcome{Number: n, PromptID: promptID, Deleted: true})
					}
				}
				return emit(cmd, ctx, outcomes, func() error {
					for _, o := range outcomes {
						if o.Deleted {
							fmt.Fprintf(cmd.OutOrStdout(), "Deleted #%d (%s)\n", o.Number, o.PromptID)
						} else {
							fmt.Fprintf(cmd.OutOrStdout(), "Job #%d %s\n", o.Number, o.Notice)
						}
					}
					return nil
				})
			})
		},
	}
}

// markDeleted records a server-side deletion in the ledger when the job is
// known locally.
func markDeleted(cmd *cobra.Command, ctx *commandContext, promptID string) {
	err := ctx.withStore(func(store *queue.Store) error {
		return store.UpdateStatus(commandCtx(cmd), promptID, queue.StatusDeleted, "removed from server queue")
	})
	if err != nil && !errors.Is(err, queue.ErrJobNotFound) {
		ctx.log().Debug("ledger not updated", logging.String(logging.FieldPromptID, promptID), logging.Error(err))
	}
}

func newQueueRemainingCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remaining",
		Short: "Print the number of jobs the server still has to run",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *comfy.Client) error {
				info, err := client.PromptStatus(commandCtx(cmd))
				if err != nil {
					return err
				}
				return emit(cmd, ctx, info, func() error {
					fmt.Fprintf(cmd.OutOrStdout(), "%d jobs remaining\n", info.QueueRemaining())
					return nil
				})
			})
		},
	}
}

func newInterruptCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "interrupt",
		Short: "Stop the job the server is currently executing",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *comfy.Client) error {
				if err := client.Interrupt(commandCtx(cmd)); err != nil {
					return err
				}
				return emit(cmd, ctx, map[string]bool{"interrupted": true}, func() error {
					fmt.Fprintln(cmd.OutOrStdout(), "Interrupt sent")
					return nil
				})
			})
		},
	}
}
