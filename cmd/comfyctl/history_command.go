package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"comfyctl/internal/comfy"
)

type historyEntry struct {
	PromptID string   `json:"prompt_id"`
	Number   int64    `json:"number"`
	ClientID string   `json:"client_id,omitempty"`
	Status   string   `json:"status,omitempty"`
	Output   []string `json:"output"`
	Temp     []string `json:"temp"`
	Input    []string `json:"input,omitempty"`
}

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var withTemp bool
	var limit int
	cmd := &cobra.Command{
		Use:   "history [prompt-id]",
		Short: "List finished jobs and the files they produced",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			promptID := ""
			if len(args) == 1 {
				promptID = strings.TrimSpace(args[0])
			}
			return ctx.withClient(func(client *comfy.Client) error {
				records, err := client.History(commandCtx(cmd), promptID)
				if err != nil {
					return err
				}
				if promptID != "" && len(records) == 0 {
					return fmt.Errorf("no history for prompt %s", promptID)
				}
				entries := historyEntries(comfy.SortedHistory(records), limit)
				return emit(cmd, ctx, entries, func() error {
					if len(entries) == 0 {
						fmt.Fprintln(cmd.OutOrStdout(), "History is empty")
						return nil
					}
					headers := []string{"#", "Prompt ID", "Status", "Outputs"}
					if withTemp {
						headers = append(headers, "Temp")
					}
					rows := make([][]string, 0, len(entries))
					for _, e := range entries {
						row := []string{strconv.FormatInt(e.Number, 10), e.PromptID, statusLabel(e.Status), strings.Join(e.Output, "\n")}
						if withTemp {
							row = append(row, strings.Join(e.Temp, "\n"))
						}
						rows = append(rows, row)
					}
					fmt.Fprint(cmd.OutOrStdout(), renderTable(headers, rows, []columnAlignment{alignRight}))
					return nil
				})
			})
		},
	}
	cmd.Flags().BoolVar(&withTemp, "temp", false, "Also show temporary (preview) files")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Show only the most recent N records")
	return cmd
}

// historyEntries flattens records into display entries, newest last. A
// positive limit keeps the most recent records.
func historyEntries(records []comfy.HistoryRecord, limit int) []historyEntry {
	if limit > 0 && len(records) > limit {
		records = records[len(records)-limit:]
	}
	entries := make([]historyEntry, 0, len(records))
	for i := range records {
		rec := &records[i]
		artifacts := rec.Artifacts()
		entries = append(entries, historyEntry{
			PromptID: rec.PromptID,
			Number:   rec.Number,
			ClientID: rec.ClientID,
			Status:   rec.Status.StatusStr,
			Output:   nonNil(artifacts.Output),
			Temp:     nonNil(artifacts.Temp),
			Input:    artifacts.Input,
		})
	}
	return entries
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
