package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/innovacioninteligente/dochevi-construc-sub000/constants"
	"github.com/innovacioninteligente/dochevi-construc-sub000/internal/common"
	"github.com/innovacioninteligente/dochevi-construc-sub000/internal/server"
)

var (
	remoteAddr    string
	remoteTimeout time.Duration
	remoteOut     string
	remoteLimit   int
	remoteSub     string
)

func init() {
	remoteCmd.PersistentFlags().StringVar(&remoteAddr, "addr", "localhost:8080", "budgetd gRPC address")
	remoteCmd.PersistentFlags().DurationVar(&remoteTimeout, "timeout", time.Minute, "per-call deadline")
	remoteSubmitCmd.Flags().StringVar(&remoteSub, "subscriber", "", "progress subscriber key")
	remoteExportCmd.Flags().StringVarP(&remoteOut, "out", "o", "", "output .xlsx path (required)")
	_ = remoteExportCmd.MarkFlagRequired("out")
	remoteListCmd.Flags().IntVarP(&remoteLimit, "limit", "n", 20, "maximum jobs")

	remoteCmd.AddCommand(remoteSubmitCmd, remoteJobCmd, remoteListCmd, remoteExportCmd)
}

var remoteCmd = &cobra.Command{
	Use:   "remote",
	Short: "Talk to a running budgetd",
}

var remoteSubmitCmd = &cobra.Command{
	Use:   "submit <file>",
	Short: "Queue a document for background processing",
	Args:  cobra.ExactArgs(1),
	RunE:  runRemoteSubmit,
}

var remoteJobCmd = &cobra.Command{
	Use:   "job <job-id>",
	Short: "Show a job and its priced items",
	Args:  cobra.ExactArgs(1),
	RunE:  runRemoteJob,
}

var remoteListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent jobs",
	Args:  cobra.NoArgs,
	RunE:  runRemoteList,
}

var remoteExportCmd = &cobra.Command{
	Use:   "export <job-id>",
	Short: "Download a finished job as .xlsx",
	Args:  cobra.ExactArgs(1),
	RunE:  runRemoteExport,
}

func dial() (*server.Client, func(), error) {
	opts := append(server.DialOptions(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	conn, err := grpc.NewClient(remoteAddr, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("dial %s: %w", remoteAddr, err)
	}
	return server.NewClient(conn), func() { _ = conn.Close() }, nil
}

func parseJobID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, common.NewAppError("INVALID_INPUT", "job id must be a UUID", common.ErrInvalidInput)
	}
	return id, nil
}

func runRemoteSubmit(cmd *cobra.Command, args []string) error {
	path := args[0]
	mt := constants.MimeForExt(filepath.Ext(path))
	if mt == "" {
		return common.NewAppError("UNSUPPORTED", "unsupported file type: "+filepath.Ext(path), common.ErrUnsupported)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	c, closeFn, err := dial()
	if err != nil {
		return err
	}
	defer closeFn()

	ctx, cancel := context.WithTimeout(context.Background(), remoteTimeout)
	defer cancel()
	id, err := c.SubmitDocument(ctx, filepath.Base(path), mt, data, remoteSub)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), id.String())
	return nil
}

func runRemoteJob(cmd *cobra.Command, args []string) error {
	id, err := parseJobID(args[0])
	if err != nil {
		return err
	}
	c, closeFn, err := dial()
	if err != nil {
		return err
	}
	defer closeFn()

	ctx, cancel := context.WithTimeout(context.Background(), remoteTimeout)
	defer cancel()
	job, err := c.GetJob(ctx, id)
	if err != nil {
		return err
	}
	items, err := c.ListItems(ctx, id)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), map[string]any{"job": job, "items": items})
}

func runRemoteList(cmd *cobra.Command, _ []string) error {
	c, closeFn, err := dial()
	if err != nil {
		return err
	}
	defer closeFn()

	ctx, cancel := context.WithTimeout(context.Background(), remoteTimeout)
	defer cancel()
	jobs, err := c.ListJobs(ctx, remoteLimit)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), jobs)
}

func runRemoteExport(cmd *cobra.Command, args []string) error {
	id, err := parseJobID(args[0])
	if err != nil {
		return err
	}
	c, closeFn, err := dial()
	if err != nil {
		return err
	}
	defer closeFn()

	ctx, cancel := context.WithTimeout(context.Background(), remoteTimeout)
	defer cancel()
	data, err := c.ExportJob(ctx, id)
	if err != nil {
		return err
	}
	if err := os.WriteFile(remoteOut, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", remoteOut, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes)\n", remoteOut, len(data))
	return nil
}
