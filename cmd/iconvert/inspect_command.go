package main

import (
	"bytes"
	"fmt"
	"image"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/aliskhannn/iconverter/internal/model"
	"github.com/aliskhannn/iconverter/internal/processor"
)

func newInspectCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <file>...",
		Short: "Show kind, size and page count of files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			files, err := readSources(args)
			if err != nil {
				return err
			}

			proc := processor.New()
			columns := []column{{title: "NAME"}, {title: "KIND"}, {title: "TYPE"}, {title: "SIZE", right: true}, {title: "DETAILS"}}
			rows := make([][]string, 0, len(files))

			for _, f := range files {
				kind, ok := model.KindOf(f.MediaType)
				if !ok {
					rows = append(rows, []string{f.Name, "unsupported", f.MediaType, humanize.Bytes(uint64(f.Size)), ""})
					continue
				}

				rows = append(rows, []string{f.Name, string(kind), f.MediaType, humanize.Bytes(uint64(f.Size)), describe(proc, kind, f)})
			}

			writeTable(cmd.OutOrStdout(), columns, rows)
			return nil
		},
	}
}

func describe(proc *processor.Processor, kind model.Kind, f model.SourceFile) string {
	if kind == model.KindPDF {
		pages, err := proc.PageCount(f.Data)
		if err != nil {
			return "unreadable"
		}
		return fmt.Sprintf("%d pages", pages)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(f.Data))
	if err != nil {
		return "unreadable"
	}

	return fmt.Sprintf("%dx%d", cfg.Width, cfg.Height)
}
