package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"comfyctl/internal/comfy"
)

type uploadFlags struct {
	subfolder string
	folder    string
	overwrite bool
	original  string
}

func newUploadCommand(ctx *commandContext) *cobra.Command {
	uploadCmd := &cobra.Command{
		Use:   "upload",
		Short: "Upload images and masks for image-to-image workflows",
	}
	uploadCmd.AddCommand(newUploadKindCommand(ctx, "image"))
	uploadCmd.AddCommand(newUploadKindCommand(ctx, "mask"))
	return uploadCmd
}

func newUploadKindCommand(ctx *commandContext, kind string) *cobra.Command {
	flags := &uploadFlags{}
	cmd := &cobra.Command{
		Use:   kind + " <file>",
		Short: "Upload a " + kind + " to the server's input folder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := comfy.UploadOptions{
				Subfolder: strings.TrimSpace(flags.subfolder),
				Type:      strings.TrimSpace(flags.folder),
				Overwrite: flags.overwrite,
			}
			if kind == "mask" && flags.original != "" {
				ref, err := parseImageRef(flags.original, comfy.ArtifactInput)
				if err != nil {
					return err
				}
				opts.OriginalRef = &ref
			}
			return ctx.withClient(func(client *comfy.Client) error {
				upload := client.UploadImage
				if kind == "mask" {
					upload = client.UploadMask
				}
				res, err := upload(commandCtx(cmd), args[0], opts)
				if err != nil {
					return err
				}
				return emit(cmd, ctx, res, func() error {
					ref := comfy.ArtifactPath(comfy.Image{Filename: res.Name, Subfolder: res.Subfolder})
					fmt.Fprintf(cmd.OutOrStdout(), "Uploaded %s as %s (%s)\n", args[0], ref, res.Type)
					return nil
				})
			})
		},
	}
	cmd.Flags().StringVar(&flags.subfolder, "subfolder", "", "Destination subfolder")
	cmd.Flags().StringVar(&flags.folder, "type", "", "Destination folder type: input, temp or output")
	cmd.Flags().BoolVar(&flags.overwrite, "overwrite", false, "Replace an existing file with the same name")
	if kind == "mask" {
		cmd.Flags().StringVar(&flags.original, "original", "", "Image the mask applies to, as [type:][subfolder/]filename")
	}
	return cmd
}

// parseImageRef reads [type:][subfolder/]filename.
func parseImageRef(value, defaultType string) (comfy.Image, error) {
	value = strings.TrimSpace(value)
	ref := comfy.Image{Type: defaultType}
	if kind, rest, ok := strings.Cut(value, ":"); ok {
		switch kind {
		case comfy.ArtifactInput, comfy.ArtifactOutput, comfy.ArtifactTemp:
			ref.Type = kind
			value = rest
		default:
			return comfy.Image{}, fmt.Errorf("unknown folder type %q in %q", kind, value)
		}
	}
	if i := strings.LastIndex(value, "/"); i >= 0 {
		ref.Subfolder = value[:i]
		value = value[i+1:]
	}
	if value == "" {
		return comfy.Image{}, fmt.Errorf("image reference needs a filename")
	}
	ref.Filename = value
	return ref, nil
}
