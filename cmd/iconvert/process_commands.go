package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/aliskhannn/iconverter/internal/archive"
	"github.com/aliskhannn/iconverter/internal/model"
	itemsvc "github.com/aliskhannn/iconverter/internal/service/item"
)

const defaultOutDir = "iconvert-out"

// destination is where processed files end up: a directory or a ZIP file.
type destination struct {
	outDir  string
	zipPath string
}

func (d *destination) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&d.outDir, "out-dir", "o", defaultOutDir, "Directory for processed files")
	cmd.Flags().StringVar(&d.zipPath, "zip", "", "Write processed files into this ZIP archive instead")
}

func newCompressCommand(ctx *commandContext) *cobra.Command {
	var (
		dest    destination
		quality int
		format  string
		maxSide int
	)

	cmd := &cobra.Command{
		Use:   "compress <file>...",
		Short: "Re-encode images, optionally bounding their longer side",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			d := cfg.Processing.Image
			if !cmd.Flags().Changed("quality") {
				quality = d.Quality
			}
			if !cmd.Flags().Changed("format") {
				format = d.Format
			}
			resize := d.Resize
			if cmd.Flags().Changed("max-side") {
				resize = maxSide > 0
			} else {
				maxSide = d.MaxSide
			}

			opts, err := model.NewImageOptions(quality, format, resize, maxSide)
			if err != nil {
				return err
			}

			return runBatch(cmd, ctx, args, dest, func(c context.Context, svc *itemsvc.Service) (model.Batch, error) {
				return svc.ProcessImages(c, opts)
			})
		},
	}

	cmd.Flags().IntVarP(&quality, "quality", "q", 80, "Quality in percent (ignored for PNG)")
	cmd.Flags().StringVarP(&format, "format", "f", "auto", "Output format: auto, png, jpeg or webp")
	cmd.Flags().IntVar(&maxSide, "max-side", 0, "Bound for the longer side in pixels, 0 keeps the size")
	dest.register(cmd)

	return cmd
}

func newOptimizeCommand(ctx *commandContext) *cobra.Command {
	var (
		dest    destination
		quality int
		maxSide int
	)

	cmd := &cobra.Command{
		Use:   "optimize <file>...",
		Short: "Rebuild PDFs from JPEG page renders",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			d := cfg.Processing.PDF
			if !cmd.Flags().Changed("quality") {
				quality = d.Quality
			}
			resize := d.Resize || cmd.Flags().Changed("max-side")
			if !cmd.Flags().Changed("max-side") {
				maxSide = d.MaxSide
			}

			opts, err := model.NewPDFOptions(quality, resize, maxSide)
			if err != nil {
				return err
			}

			return runBatch(cmd, ctx, args, dest, func(c context.Context, svc *itemsvc.Service) (model.Batch, error) {
				return svc.ProcessPDFs(c, opts)
			})
		},
	}

	cmd.Flags().IntVarP(&quality, "quality", "q", 70, "JPEG quality of page renders in percent")
	cmd.Flags().IntVar(&maxSide, "max-side", model.DefaultPDFMaxSide, "Bound for the longer page side in pixels")
	dest.register(cmd)

	return cmd
}

// runBatch ingests the files, runs one batch over them and writes whatever
// was produced, including the outputs completed before a failure.
func runBatch(
	cmd *cobra.Command,
	ctx *commandContext,
	paths []string,
	dest destination,
	process func(context.Context, *itemsvc.Service) (model.Batch, error),
) error {
	svc, cleanup, err := ctx.newService()
	if err != nil {
		return err
	}
	defer cleanup()

	files, err := readSources(paths)
	if err != nil {
		return err
	}

	_, skipped, err := svc.Ingest(cmd.Context(), files)
	if err != nil {
		return err
	}
	for _, s := range skipped {
		fmt.Fprintf(cmd.ErrOrStderr(), "skipped %s: %s\n", s.Name, s.Reason)
	}

	_, runErr := process(cmd.Context(), svc)
	if runErr != nil && !errors.Is(runErr, itemsvc.ErrNothingSelected) {
		fmt.Fprintf(cmd.ErrOrStderr(), "batch stopped: %v\n", runErr)
	}

	items := svc.List()
	if err := writeOutputs(cmd.Context(), svc, items, dest); err != nil && !errors.Is(err, archive.ErrEmpty) {
		return err
	}

	printSummary(cmd.OutOrStdout(), items)

	return runErr
}

func writeOutputs(ctx context.Context, svc *itemsvc.Service, items []model.Item, dest destination) error {
	if dest.zipPath != "" {
		f, err := os.Create(dest.zipPath)
		if err != nil {
			return fmt.Errorf("create archive: %w", err)
		}

		if err := svc.Archive(ctx, f); err != nil {
			f.Close()
			_ = os.Remove(dest.zipPath)
			return err
		}

		return f.Close()
	}

	if err := os.MkdirAll(dest.outDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	taken := make(map[string]struct{})
	for _, it := range items {
		if !it.Processed() {
			continue
		}

		name := archive.UniqueName(it.OutputName(), taken)
		if err := os.WriteFile(filepath.Join(dest.outDir, name), it.Output, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
	}

	return nil
}
