package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/innovacioninteligente/dochevi-construc-sub000/constants"
	"github.com/innovacioninteligente/dochevi-construc-sub000/internal/common"
	"github.com/innovacioninteligente/dochevi-construc-sub000/internal/extraction"
	"github.com/innovacioninteligente/dochevi-construc-sub000/internal/llm"
	"github.com/innovacioninteligente/dochevi-construc-sub000/internal/pipeline"
	"github.com/innovacioninteligente/dochevi-construc-sub000/internal/textlayer"
)

var (
	batchName      string
	batchPages     int
	batchPrice     bool
	batchNoVerify  bool
	batchWait      time.Duration
	batchPollEvery time.Duration
)

func init() {
	batchSubmitCmd.Flags().StringVar(&batchName, "name", "", "display name for the provider-side job")
	batchStatusCmd.Flags().IntVar(&batchPages, "pages", 0, "page count of the source document, for the result")
	batchStatusCmd.Flags().BoolVar(&batchPrice, "price", false, "when done, run inference and pricing on the extracted items")
	batchStatusCmd.Flags().BoolVar(&batchNoVerify, "no-verify", false, "skip model verification when pricing")
	batchStatusCmd.Flags().DurationVar(&batchWait, "wait", 0, "poll until the job finishes or this long has passed")
	batchStatusCmd.Flags().DurationVar(&batchPollEvery, "poll-interval", 30*time.Second, "interval between polls with --wait")

	batchCmd.AddCommand(batchSubmitCmd)
	batchCmd.AddCommand(batchStatusCmd)
}

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Asynchronous extraction through a provider batch job",
	Long: `Large documents can be extracted as a provider-side batch job instead of
synchronous calls. Only providers with batch support (LLM_PROVIDER=gemini)
accept these commands.`,
}

var batchSubmitCmd = &cobra.Command{
	Use:   "submit <file>",
	Short: "Submit one extraction request per text chunk",
	Args:  cobra.ExactArgs(1),
	RunE:  runBatchSubmit,
}

var batchStatusCmd = &cobra.Command{
	Use:   "status <job-name>",
	Short: "Poll a batch job and print the assembled items once it is done",
	Long: `Poll a batch job. When it has finished, the per-chunk responses are
assembled in order (chapter context is threaded across chunks) and printed.

Examples:
  budget batch status batches/abc123
  budget batch status batches/abc123 --wait 2h --price --pages 40`,
	Args: cobra.ExactArgs(1),
	RunE: runBatchStatus,
}

func batchClient(cfg *common.Config) (llm.BatchGenerator, error) {
	gen, err := pipeline.NewGenerator(cfg.LLM, nil)
	if err != nil {
		return nil, err
	}
	return llm.AsBatch(gen)
}

func runBatchSubmit(cmd *cobra.Command, args []string) error {
	logger := newLogger(cmd.ErrOrStderr())
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	bg, err := batchClient(cfg)
	if err != nil {
		return err
	}

	path := args[0]
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	prober := textlayer.NewProber(textlayer.Config{
		Pdftotext:     cfg.TextLayer.Pdftotext,
		MinTextChars:  cfg.TextLayer.MinTextChars,
		MinChunkChars: cfg.TextLayer.MinChunkChars,
	}, textlayer.ExecRunner{Logger: logger}, logger)
	orch := extraction.NewOrchestrator(bg, prober, textlayer.NewPDFPages(), nil, logger)

	ctx := context.Background()
	reqs, probe, err := orch.BatchRequests(ctx, extraction.Document{
		Data:     data,
		MimeType: constants.MimeForExt(filepath.Ext(path)),
		Name:     filepath.Base(path),
	})
	if err != nil {
		return err
	}
	name := batchName
	if name == "" {
		name = "budget-" + filepath.Base(path)
	}
	job, err := bg.SubmitBatch(ctx, name, reqs, llm.ExtractionSchema())
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), map[string]any{
		"job":      job.Name,
		"state":    job.State,
		"requests": len(reqs),
		"pages":    probe.PageCount,
	})
}

func runBatchStatus(cmd *cobra.Command, args []string) error {
	logger := newLogger(cmd.ErrOrStderr())
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if batchNoVerify {
		cfg.Pricing.Verify = false
	}
	bg, err := batchClient(cfg)
	if err != nil {
		return err
	}

	ctx := context.Background()
	deadline := time.Now().Add(batchWait)
	job, err := bg.BatchStatus(ctx, args[0], llm.ExtractionSchema())
	for err == nil && !job.Done && time.Now().Before(deadline) {
		logger.Info("batch.pending", "job", job.Name, "state", job.State)
		time.Sleep(batchPollEvery)
		job, err = bg.BatchStatus(ctx, args[0], llm.ExtractionSchema())
	}
	if err != nil {
		return err
	}
	if !job.Done {
		return printJSON(cmd.OutOrStdout(), map[string]any{"job": job.Name, "state": job.State, "done": false})
	}

	res := extraction.AssembleBatch(job, batchPages)
	if !batchPrice {
		return printJSON(cmd.OutOrStdout(), map[string]any{
			"job":    job.Name,
			"state":  job.State,
			"done":   true,
			"failed": res.Failed,
			"items":  res.Items,
		})
	}

	comps, err := pipeline.Build(ctx, cfg, nil, nil, logger)
	if err != nil {
		return err
	}
	out := comps.Processor.PriceExtracted(ctx, res, "")
	return printJSON(cmd.OutOrStdout(), out)
}
