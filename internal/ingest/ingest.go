package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/innovacioninteligente/dochevi-construc-sub000/constants"
	"github.com/innovacioninteligente/dochevi-construc-sub000/internal/common"
)

// Submitter hands a document to background processing.
type Submitter interface {
	Submit(ctx context.Context, sourceName, mimeType string, data []byte, subscriberKey string) (uuid.UUID, error)
}

// Result is the per-file ingest outcome.
type Result struct {
	SourcePath   string
	JobID        uuid.UUID
	Deduplicated bool
	HashHex      string
	FileExt      string
	SubmittedAt  time.Time
	Err          string
}

// DirStats summarizes a directory ingest.
type DirStats struct {
	Scanned      uint32
	Matched      uint32
	Succeeded    uint32
	Deduplicated uint32
	Failed       uint32
}

// Ingestor submits files from the local filesystem, skipping content it has
// already submitted during this process lifetime.
type Ingestor struct {
	queue         Submitter
	subscriberKey string
	logger        *slog.Logger

	mu   sync.Mutex
	seen map[string]uuid.UUID
}

func NewIngestor(queue Submitter, subscriberKey string, logger *slog.Logger) *Ingestor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingestor{
		queue:         queue,
		subscriberKey: subscriberKey,
		logger:        logger,
		seen:          make(map[string]uuid.UUID),
	}
}

// AllowedExt checks if a file extension is one the pipeline accepts.
func AllowedExt(ext string) bool {
	_, ok := constants.AllowedExtensions[constants.NormalizeExt(ext)]
	return ok
}

// IsHidden checks if a file or directory is hidden (starts with '.').
func IsHidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}

func (i *Ingestor) IngestPath(ctx context.Context, path string) (Result, error) {
	var out Result

	abs, err := filepath.Abs(path)
	if err != nil {
		return out, err
	}
	out.SourcePath = abs

	ext := constants.NormalizeExt(filepath.Ext(abs))
	if ext == "" || !AllowedExt(ext) {
		i.logger.Warn("unsupported or missing extension", "path", abs, "ext", ext)
		return out, common.NewAppError("UNSUPPORTED", fmt.Sprintf("extension %q", ext), common.ErrUnsupported)
	}
	out.FileExt = ext

	data, err := os.ReadFile(abs)
	if err != nil {
		i.logger.Error("failed to read file", "path", abs, "error", err)
		return out, err
	}
	if len(data) == 0 {
		return out, common.NewAppError("INVALID_INPUT", "empty file "+abs, common.ErrInvalidInput)
	}
	sum := sha256.Sum256(data)
	out.HashHex = hex.EncodeToString(sum[:])

	i.mu.Lock()
	if id, ok := i.seen[out.HashHex]; ok {
		i.mu.Unlock()
		out.JobID = id
		out.Deduplicated = true
		i.logger.Info("ingest.dedup", "path", abs, "job_id", id)
		return out, nil
	}
	i.mu.Unlock()

	id, err := i.queue.Submit(ctx, filepath.Base(abs), constants.MimeForExt(ext), data, i.subscriberKey)
	if err != nil {
		i.logger.Error("failed to submit file", "path", abs, "error", err)
		return out, err
	}

	i.mu.Lock()
	i.seen[out.HashHex] = id
	i.mu.Unlock()

	out.JobID = id
	out.SubmittedAt = time.Now().UTC()
	i.logger.Info("ingest.submitted", "path", abs, "job_id", id, "bytes", len(data))
	return out, nil
}

// IngestDirectory walks root and submits every matching file. Per-file
// failures are recorded in the results and do not stop the walk.
func (i *Ingestor) IngestDirectory(ctx context.Context, root string, skipHidden bool) ([]Result, DirStats, error) {
	var stats DirStats
	if strings.TrimSpace(root) == "" {
		return nil, stats, errors.New("root is required")
	}

	var results []Result
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if walkErr != nil {
			stats.Failed++
			results = append(results, Result{SourcePath: path, Err: walkErr.Error()})
			return nil
		}
		if skipHidden && path != root && IsHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		stats.Scanned++
		if !AllowedExt(filepath.Ext(path)) {
			return nil
		}
		stats.Matched++

		r, err := i.IngestPath(ctx, path)
		switch {
		case err != nil:
			r.Err = err.Error()
			stats.Failed++
		case r.Deduplicated:
			stats.Deduplicated++
		default:
			stats.Succeeded++
		}
		results = append(results, r)
		return nil
	})
	if err != nil {
		return results, stats, err
	}
	i.logger.Info("ingest.directory.done", "root", root, "scanned", stats.Scanned, "matched", stats.Matched,
		"succeeded", stats.Succeeded, "deduplicated", stats.Deduplicated, "failed", stats.Failed)
	return results, stats, nil
}

// Watch submits files as they appear under cfg.Roots until ctx is done.
func (i *Ingestor) Watch(ctx context.Context, cfg WatchConfig) error {
	events, errs, err := StartWatcher(ctx, cfg, i.logger)
	if err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case path, ok := <-events:
			if !ok {
				return nil
			}
			if _, err := i.IngestPath(ctx, path); err != nil {
				i.logger.Warn("ingest.watch.skip", "path", path, "error", err)
			}
		case err, ok := <-errs:
			if ok && err != nil {
				i.logger.Warn("ingest.watch.error", "error", err)
			}
		}
	}
}
