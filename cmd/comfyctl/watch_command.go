package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"comfyctl/internal/logging"
	"comfyctl/internal/queue"
	"comfyctl/internal/stream"
	"comfyctl/internal/workflow"
)

func newWatchCommand(ctx *commandContext) *cobra.Command {
	var resume bool
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow execution progress until the server queue drains",
		Long: "Follow execution progress on the WebSocket stream. The server only\n" +
			"sends node progress to the client that submitted the job, so use\n" +
			"--resume (the client id of the last submission in the ledger) or\n" +
			"--client-id to follow jobs queued by an earlier invocation.\n" +
			"Press ESC or q to stop following; queued jobs keep running.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if resume && strings.TrimSpace(ctx.flags.clientID) == "" {
				if err := ctx.withStore(func(store *queue.Store) error {
					id, err := store.LatestClientID(commandCtx(cmd))
					if err != nil {
						return err
					}
					if id == "" {
						return errors.New("no submitted jobs in the ledger to resume")
					}
					ctx.flags.clientID = id
					return nil
				}); err != nil {
					return err
				}
			}

			client, err := ctx.newClient()
			if err != nil {
				return err
			}
			clientID := ctx.processClientID()
			conn, err := dialStream(cmd, ctx, client, clientID)
			if err != nil {
				return err
			}
			defer conn.Close()

			var resolver stream.NodeResolver
			if cfg, err := ctx.ensureConfig(); err == nil {
				if graph, err := workflow.Load(cfg.Workflow.TemplatePath); err == nil {
					resolver = graph
				} else {
					ctx.log().Debug("node classes unavailable", logging.Error(err))
				}
			}

			if !ctx.jsonOutput() {
				fmt.Fprintf(cmd.ErrOrStderr(), "Watching as client %s\n", clientID)
			}
			result, err := track(cmd, ctx, client, conn, resolver)
			if ctx.jsonOutput() {
				if werr := writeJSON(cmd, result); werr != nil {
					return werr
				}
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&resume, "resume", false, "Reuse the client id of the most recent submission")
	return cmd
}
