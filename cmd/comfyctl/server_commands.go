package main

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"comfyctl/internal/comfy"
)

func newStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show server host and GPU information",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *comfy.Client) error {
				stats, err := client.SystemStats(commandCtx(cmd))
				if err != nil {
					return err
				}
				return emit(cmd, ctx, stats, func() error {
					out := cmd.OutOrStdout()
					colorize := shouldColorize(out)
					for _, line := range renderSectionHeader("System", colorize) {
						fmt.Fprintln(out, line)
					}
					sys := stats.System
					pairs := [][2]string{
						{"OS", sys.OS},
						{"Python", sys.PythonVersion},
						{"Embedded Python", yesNo(sys.EmbeddedPython)},
					}
					if sys.ComfyVersion != "" {
						pairs = append(pairs, [2]string{"ComfyUI", sys.ComfyVersion})
					}
					if sys.PytorchVersion != "" {
						pairs = append(pairs, [2]string{"PyTorch", sys.PytorchVersion})
					}
					if sys.RAMTotal > 0 {
						pairs = append(pairs, [2]string{"RAM", fmt.Sprintf("%s free of %s", humanize.IBytes(sys.RAMFree), humanize.IBytes(sys.RAMTotal))})
					}
					fmt.Fprint(out, renderKeyValues(pairs))

					if len(stats.Devices) == 0 {
						return nil
					}
					for _, line := range renderSectionHeader("Devices", colorize) {
						fmt.Fprintln(out, line)
					}
					rows := make([][]string, 0, len(stats.Devices))
					for _, d := range stats.Devices {
						index := "-"
						if d.Index != nil {
							index = strconv.Itoa(*d.Index)
						}
						rows = append(rows, []string{
							index, d.Name, d.Type,
							humanize.IBytes(d.VRAMTotal),
							humanize.IBytes(d.VRAMFree),
							humanize.IBytes(d.TorchVRAMFree),
						})
					}
					fmt.Fprint(out, renderTable([]string{"Index", "Name", "Type", "VRAM", "VRAM Free", "Torch Free"}, rows,
						[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignRight, alignRight}))
					return nil
				})
			})
		},
	}
}

func newObjectInfoCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "object-info [class]",
		Short: "List node classes, or show one class definition",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			class := ""
			if len(args) == 1 {
				class = strings.TrimSpace(args[0])
			}
			return ctx.withClient(func(client *comfy.Client) error {
				info, err := client.ObjectInfo(commandCtx(cmd), class)
				if err != nil {
					return err
				}
				if class != "" {
					def, ok := info[class]
					if !ok {
						return fmt.Errorf("server has no node class %q", class)
					}
					var pretty any
					if err := json.Unmarshal(def, &pretty); err != nil {
						return fmt.Errorf("decode %s: %w", class, err)
					}
					return writeJSON(cmd, map[string]any{class: pretty})
				}
				names := slices.Sorted(maps.Keys(info))
				return emit(cmd, ctx, names, func() error {
					for _, name := range names {
						fmt.Fprintln(cmd.OutOrStdout(), name)
					}
					fmt.Fprintf(cmd.ErrOrStderr(), "%d node classes\n", len(names))
					return nil
				})
			})
		},
	}
}

func newEmbeddingsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "embeddings",
		Short: "List textual-inversion embeddings installed on the server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *comfy.Client) error {
				names, err := client.Embeddings(commandCtx(cmd))
				if err != nil {
					return err
				}
				return printNames(cmd, ctx, names, "No embeddings installed")
			})
		},
	}
}

func newExtensionsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "extensions",
		Short: "List front-end extension scripts served by the server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *comfy.Client) error {
				names, err := client.Extensions(commandCtx(cmd))
				if err != nil {
					return err
				}
				return printNames(cmd, ctx, names, "No extensions installed")
			})
		},
	}
}

func printNames(cmd *cobra.Command, ctx *commandContext, names []string, empty string) error {
	if names == nil {
		names = []string{}
	}
	return emit(cmd, ctx, names, func() error {
		if len(names) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), empty)
			return nil
		}
		for _, name := range names {
			fmt.Fprintln(cmd.OutOrStdout(), name)
		}
		return nil
	})
}
