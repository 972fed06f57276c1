package main

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"comfyctl/internal/comfy"
	"comfyctl/internal/fileutil"
)

type viewOutput struct {
	Path        string `json:"path"`
	Bytes       int64  `json:"bytes"`
	ContentType string `json:"content_type"`
}

func newViewCommand(ctx *commandContext) *cobra.Command {
	var output string
	var preview string
	cmd := &cobra.Command{
		Use:   "view <[type:][subfolder/]filename>",
		Short: "Download a generated file",
		Long: "Download a file from the server's output, temp or input folder. The\n" +
			"folder type defaults to output. Use -o - to write to stdout.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := parseImageRef(args[0], comfy.ArtifactOutput)
			if err != nil {
				return err
			}
			if output == "" {
				output = ref.Filename
			}
			return ctx.withClient(func(client *comfy.Client) error {
				opts := comfy.ViewOptions{Filename: ref.Filename, Subfolder: ref.Subfolder, Type: ref.Type, Preview: preview}
				if output == "-" {
					_, _, err := client.View(commandCtx(cmd), opts, cmd.OutOrStdout())
					return err
				}
				res, err := downloadTo(cmd, client, opts, output)
				if err != nil {
					return err
				}
				return emit(cmd, ctx, res, func() error {
					fmt.Fprintf(cmd.OutOrStdout(), "Saved %s (%s, %s)\n", res.Path, humanize.IBytes(uint64(res.Bytes)), res.ContentType)
					return nil
				})
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Destination file (default: the file name in the current directory)")
	cmd.Flags().StringVar(&preview, "preview", "", "Request a re-encoded preview, e.g. webp;90")
	return cmd
}

// downloadTo saves the artifact at path; a failed download leaves nothing
// behind.
func downloadTo(cmd *cobra.Command, client *comfy.Client, opts comfy.ViewOptions, path string) (viewOutput, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return viewOutput{}, err
	}
	var contentType string
	var n int64
	err = fileutil.WriteAtomic(abs, 0o644, func(w io.Writer) error {
		var viewErr error
		n, contentType, viewErr = client.View(commandCtx(cmd), opts, w)
		return viewErr
	})
	if err != nil {
		return viewOutput{}, err
	}
	return viewOutput{Path: abs, Bytes: n, ContentType: contentType}, nil
}
