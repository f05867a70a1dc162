package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/innovacioninteligente/dochevi-construc-sub000/constants"
	"github.com/innovacioninteligente/dochevi-construc-sub000/internal/common"
	"github.com/innovacioninteligente/dochevi-construc-sub000/internal/entity"
	"github.com/innovacioninteligente/dochevi-construc-sub000/internal/repository"
)

const (
	maxDocumentBytes = 64 << 20
	defaultListLimit = 50
)

// DocumentProcessor runs the pipeline synchronously.
type DocumentProcessor interface {
	ProcessDocument(ctx context.Context, data []byte, mimeType, subscriberKey string) (entity.BudgetResult, error)
}

// Submitter enqueues a document for background processing.
type Submitter interface {
	Submit(ctx context.Context, sourceName, mimeType string, data []byte, subscriberKey string) (uuid.UUID, error)
}

// Exporter renders a persisted job as a workbook.
type Exporter interface {
	ExportJobXLSX(ctx context.Context, jobID uuid.UUID) ([]byte, error)
}

type BudgetServer struct {
	processor DocumentProcessor
	queue     Submitter
	repo      repository.BudgetRepository
	exporter  Exporter
	logger    *slog.Logger
}

var _ BudgetServiceServer = (*BudgetServer)(nil)

func NewBudgetServer(proc DocumentProcessor, queue Submitter, repo repository.BudgetRepository, exp Exporter, logger *slog.Logger) *BudgetServer {
	if logger == nil {
		logger = slog.Default()
	}
	return &BudgetServer{
		processor: proc,
		queue:     queue,
		repo:      repo,
		exporter:  exp,
		logger:    logger,
	}
}

type documentRequest struct {
	SourceName    string
	MimeType      string
	Data          []byte
	SubscriberKey string
}

// decodeDocument reads {source_name, mime_type, content_base64, subscriber_key}.
func decodeDocument(in *structpb.Struct) (documentRequest, error) {
	f := in.GetFields()
	req := documentRequest{
		SourceName:    strings.TrimSpace(f["source_name"].GetStringValue()),
		MimeType:      constants.NormalizeMime(f["mime_type"].GetStringValue()),
		SubscriberKey: strings.TrimSpace(f["subscriber_key"].GetStringValue()),
	}
	raw := f["content_base64"].GetStringValue()
	if raw != "" {
		data, err := base64.StdEncoding.DecodeString(raw)
		if err != nil {
			return req, common.InvalidArgumentErrorf("content_base64 is not valid base64: %v", err)
		}
		req.Data = data
	}
	if err := common.NewValidator().
		Field("content_base64", req.Data, common.Required, common.MaxBytes(maxDocumentBytes)).
		Field("mime_type", req.MimeType, common.Required, common.SupportedMime).
		Field("source_name", req.SourceName, common.MaxLength(512)).
		Err(); err != nil {
		return req, common.ToStatus(err)
	}
	return req, nil
}

func (s *BudgetServer) ProcessDocument(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := decodeDocument(in)
	if err != nil {
		s.logger.Error("process request rejected", "error", err)
		return nil, err
	}
	start := time.Now()
	s.logger.Info("grpc.process.start", "source", req.SourceName, "mime", req.MimeType, "bytes", len(req.Data))
	res, err := s.processor.ProcessDocument(ctx, req.Data, req.MimeType, req.SubscriberKey)
	if err != nil {
		s.logger.Error("grpc.process.failed", "source", req.SourceName, "error", err)
		return nil, common.ToStatus(err)
	}
	s.logger.Info("grpc.process.ok", "source", req.SourceName, "items", len(res.Items),
		"elapsed_ms", time.Since(start).Milliseconds())
	return toStruct(res)
}

func (s *BudgetServer) SubmitDocument(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := decodeDocument(in)
	if err != nil {
		s.logger.Error("submit request rejected", "error", err)
		return nil, err
	}
	if req.SourceName == "" {
		req.SourceName = "upload"
	}
	id, err := s.queue.Submit(ctx, req.SourceName, req.MimeType, req.Data, req.SubscriberKey)
	if err != nil {
		s.logger.Error("failed to submit document", "source", req.SourceName, "error", err)
		return nil, common.ToStatus(err)
	}
	s.logger.Info("document submitted", "job_id", id, "source", req.SourceName)
	return structpb.NewStruct(map[string]any{
		"job_id": id.String(),
		"status": string(constants.JobStatusQueued),
	})
}

func (s *BudgetServer) GetJob(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id, err := jobID(in)
	if err != nil {
		return nil, err
	}
	job, err := s.repo.Get(ctx, id)
	if err != nil {
		s.logger.Error("failed to get job", "job_id", id, "error", err)
		return nil, common.ToStatus(err)
	}
	return toStruct(job)
}

func (s *BudgetServer) ListJobs(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	limit := int(in.GetFields()["limit"].GetNumberValue())
	if limit <= 0 {
		limit = defaultListLimit
	}
	jobs, err := s.repo.List(ctx, limit)
	if err != nil {
		s.logger.Error("failed to list jobs", "error", err)
		return nil, common.ToStatus(err)
	}
	return toStruct(map[string]any{"jobs": jobs})
}

func (s *BudgetServer) ListItems(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id, err := jobID(in)
	if err != nil {
		return nil, err
	}
	items, err := s.repo.ListItems(ctx, id)
	if err != nil {
		s.logger.Error("failed to list items", "job_id", id, "error", err)
		return nil, common.ToStatus(err)
	}
	return toStruct(map[string]any{"items": items})
}

func (s *BudgetServer) ExportJob(ctx context.Context, in *structpb.Struct) (*wrapperspb.BytesValue, error) {
	id, err := jobID(in)
	if err != nil {
		return nil, err
	}
	data, err := s.exporter.ExportJobXLSX(ctx, id)
	if err != nil {
		s.logger.Error("failed to export job", "job_id", id, "error", err)
		return nil, common.ToStatus(err)
	}
	return wrapperspb.Bytes(data), nil
}

func jobID(in *structpb.Struct) (uuid.UUID, error) {
	raw := strings.TrimSpace(in.GetFields()["job_id"].GetStringValue())
	if raw == "" {
		return uuid.Nil, status.Error(codes.InvalidArgument, "job_id is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, status.Error(codes.InvalidArgument, "job_id must be a UUID")
	}
	return id, nil
}

// toStruct converts any JSON-serializable value into a protobuf Struct.
func toStruct(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return out, nil
}

// FromStruct decodes a Struct response into v.
func FromStruct(s *structpb.Struct, v any) error {
	b, err := s.MarshalJSON()
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}
