package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/Caia-Tech/caia-scribe/internal/config"
	"github.com/Caia-Tech/caia-scribe/pkg/extractor"
	"github.com/Caia-Tech/caia-scribe/pkg/recognition"
	"github.com/spf13/cobra"
)

// coordinatorFactory builds the coordinator for a command run; tests swap it
var coordinatorFactory = func(cfg *config.Config) *recognition.Coordinator {
	return cfg.Recognition.NewCoordinator()
}

type recognizeOptions struct {
	output  string
	asJSON  bool
	noModel bool
}

type fileResult struct {
	File       string                 `json:"file"`
	Text       string                 `json:"text,omitempty"`
	Provenance recognition.Provenance `json:"provenance,omitempty"`
	Error      string                 `json:"error,omitempty"`
}

func newRecognizeCommand() *cobra.Command {
	opts := &recognizeOptions{}

	cmd := &cobra.Command{
		Use:   "recognize <image> [image...]",
		Short: "Recognize handwritten text in images",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.output != "" && len(args) != 1 {
				return fmt.Errorf("--output needs exactly one image, got %d", len(args))
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if opts.noModel {
				cfg.Recognition.DisableModel = true
			}

			return runRecognize(cmd, cfg, opts, args)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "write the recognized text to this file")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "print results as JSON")
	cmd.Flags().BoolVar(&opts.noModel, "no-model", false, "use the baseline engine only")

	return cmd
}

func runRecognize(cmd *cobra.Command, cfg *config.Config, opts *recognizeOptions, files []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	coordinator := coordinatorFactory(cfg)
	defer coordinator.Close()

	if err := coordinator.Init(ctx); err != nil {
		return err
	}
	if coordinator.Mode() != "dual" && !cfg.Recognition.DisableModel {
		fmt.Fprintln(cmd.ErrOrStderr(), "warning: handwriting model unavailable, using baseline OCR only")
	}

	var results []fileResult
	failed := 0
	for _, file := range files {
		res := recognizeFile(ctx, coordinator, file)
		if res.Error != "" {
			failed++
		}
		results = append(results, res)
	}

	if opts.output != "" && failed == 0 {
		if err := os.WriteFile(opts.output, []byte(results[0].Text), 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", opts.output, err)
		}
	}

	out := cmd.OutOrStdout()
	if opts.asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(results); err != nil {
			return err
		}
	} else {
		for _, res := range results {
			if len(files) > 1 {
				fmt.Fprintf(out, "== %s\n", res.File)
			}
			if res.Error != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s\n", res.File, res.Error)
				continue
			}
			fmt.Fprintln(out, res.Text)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d images failed", failed, len(files))
	}
	return nil
}

func recognizeFile(ctx context.Context, coordinator *recognition.Coordinator, path string) fileResult {
	res := fileResult{File: filepath.Base(path)}

	content, err := os.ReadFile(path)
	if err != nil {
		res.Error = err.Error()
		return res
	}

	mediaType := extractor.MediaTypeFromFilename(path)
	if mediaType == "" {
		mediaType = http.DetectContentType(content)
	}
	if !extractor.IsSupportedImage(mediaType) {
		res.Error = fmt.Sprintf("unsupported file type %s", mediaType)
		return res
	}

	result, err := coordinator.Recognize(ctx, recognition.NewRequest(content, mediaType))
	if err != nil {
		res.Error = err.Error()
		return res
	}

	res.Text = result.Text
	res.Provenance = result.Provenance
	return res
}
