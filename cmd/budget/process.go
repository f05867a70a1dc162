package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/innovacioninteligente/dochevi-construc-sub000/constants"
	"github.com/innovacioninteligente/dochevi-construc-sub000/internal/common"
	"github.com/innovacioninteligente/dochevi-construc-sub000/internal/entity"
	"github.com/innovacioninteligente/dochevi-construc-sub000/internal/export"
	"github.com/innovacioninteligente/dochevi-construc-sub000/internal/pipeline"
	"github.com/innovacioninteligente/dochevi-construc-sub000/internal/progress"
	"github.com/innovacioninteligente/dochevi-construc-sub000/internal/repository"
)

var (
	processMime      string
	processOut       string
	processNoVerify  bool
	processDB        string
	processSubscribe string
	processTimeout   time.Duration
)

func init() {
	processCmd.Flags().StringVar(&processMime, "mime", "", "mime type (defaults to the file extension's)")
	processCmd.Flags().StringVarP(&processOut, "out", "o", "", "write the budget as .xlsx to this path")
	processCmd.Flags().BoolVar(&processNoVerify, "no-verify", false, "skip model verification of catalog candidates")
	processCmd.Flags().StringVar(&processDB, "db", "", "persist the result to this database (postgres URL or sqlite:/file: DSN)")
	processCmd.Flags().StringVar(&processSubscribe, "subscriber", "", "progress subscriber key (events go to NATS_URL when set)")
	processCmd.Flags().DurationVar(&processTimeout, "timeout", 30*time.Minute, "overall deadline")
}

var processCmd = &cobra.Command{
	Use:   "process <file>",
	Short: "Extract, refine and price one document",
	Long: `Run the full pipeline on one document and print the priced result as JSON.

Examples:
  # Price a PDF and print JSON
  budget process mediciones.pdf

  # Also write a workbook and keep a record in sqlite
  budget process mediciones.pdf -o presupuesto.xlsx --db sqlite:budget.db`,
	Args: cobra.ExactArgs(1),
	RunE: runProcess,
}

func runProcess(cmd *cobra.Command, args []string) error {
	logger := newLogger(cmd.ErrOrStderr())
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if processNoVerify {
		cfg.Pricing.Verify = false
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, processTimeout)
	defer cancel()

	path := args[0]
	mt := processMime
	if mt == "" {
		mt = constants.MimeForExt(filepath.Ext(path))
	}
	if mt == "" {
		return common.NewAppError("UNSUPPORTED", "cannot infer mime type of "+path+"; pass --mime", common.ErrUnsupported)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	var sink progress.Sink = progress.Nop{}
	if cfg.Progress.NATSURL != "" && processSubscribe != "" {
		ns, err := progress.Connect(cfg.Progress.NATSURL, cfg.Progress.SubjectPrefix, logger)
		if err != nil {
			return fmt.Errorf("connect nats: %w", err)
		}
		defer ns.Close()
		sink = ns
	}

	comps, err := pipeline.Build(ctx, cfg, sink, nil, logger)
	if err != nil {
		return err
	}
	res, err := comps.Processor.ProcessDocument(ctx, data, mt, processSubscribe)
	if err != nil {
		return err
	}

	if processDB != "" {
		if err := persist(ctx, cfg, filepath.Base(path), mt, res); err != nil {
			return err
		}
	}
	if processOut != "" {
		xlsx, err := export.NewService(nil, logger).BudgetXLSX(res)
		if err != nil {
			return err
		}
		if err := os.WriteFile(processOut, xlsx, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", processOut, err)
		}
	}
	return printJSON(cmd.OutOrStdout(), res)
}

func persist(ctx context.Context, cfg *common.Config, name, mt string, res entity.BudgetResult) error {
	dbCfg := repository.ConfigFrom(cfg.Database)
	dbCfg.DSN = processDB
	db, err := repository.Open(ctx, dbCfg, slog.Default())
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.Migrate(ctx); err != nil {
		return err
	}
	repo := repository.NewBudgetRepository(db, slog.Default())
	job, err := repo.Create(ctx, name, mt, processSubscribe, constants.JobStatusRunning)
	if err != nil {
		return err
	}
	return repo.FinishSuccess(ctx, job.ID, res)
}
