package server

import (
	"context"
	"encoding/base64"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/innovacioninteligente/dochevi-construc-sub000/internal/entity"
)

// Client is a thin typed wrapper over the budget service.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) invoke(ctx context.Context, method string, in map[string]any, out any) error {
	req, err := structpb.NewStruct(in)
	if err != nil {
		return err
	}
	return c.cc.Invoke(ctx, fullMethod(method), req, out)
}

func documentFields(sourceName, mimeType string, data []byte, subscriberKey string) map[string]any {
	return map[string]any{
		"source_name":    sourceName,
		"mime_type":      mimeType,
		"content_base64": base64.StdEncoding.EncodeToString(data),
		"subscriber_key": subscriberKey,
	}
}

func (c *Client) ProcessDocument(ctx context.Context, sourceName, mimeType string, data []byte, subscriberKey string) (entity.BudgetResult, error) {
	var res entity.BudgetResult
	out := new(structpb.Struct)
	if err := c.invoke(ctx, methodProcess, documentFields(sourceName, mimeType, data, subscriberKey), out); err != nil {
		return res, err
	}
	err := FromStruct(out, &res)
	return res, err
}

func (c *Client) SubmitDocument(ctx context.Context, sourceName, mimeType string, data []byte, subscriberKey string) (uuid.UUID, error) {
	out := new(structpb.Struct)
	if err := c.invoke(ctx, methodSubmit, documentFields(sourceName, mimeType, data, subscriberKey), out); err != nil {
		return uuid.Nil, err
	}
	return uuid.Parse(out.GetFields()["job_id"].GetStringValue())
}

func (c *Client) GetJob(ctx context.Context, id uuid.UUID) (*entity.BudgetJob, error) {
	out := new(structpb.Struct)
	if err := c.invoke(ctx, methodGetJob, map[string]any{"job_id": id.String()}, out); err != nil {
		return nil, err
	}
	var job entity.BudgetJob
	if err := FromStruct(out, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

func (c *Client) ListJobs(ctx context.Context, limit int) ([]entity.BudgetJob, error) {
	out := new(structpb.Struct)
	if err := c.invoke(ctx, methodList, map[string]any{"limit": limit}, out); err != nil {
		return nil, err
	}
	var resp struct {
		Jobs []entity.BudgetJob `json:"jobs"`
	}
	err := FromStruct(out, &resp)
	return resp.Jobs, err
}

func (c *Client) ListItems(ctx context.Context, id uuid.UUID) ([]entity.PricedMeasurementItem, error) {
	out := new(structpb.Struct)
	if err := c.invoke(ctx, methodItems, map[string]any{"job_id": id.String()}, out); err != nil {
		return nil, err
	}
	var resp struct {
		Items []entity.PricedMeasurementItem `json:"items"`
	}
	err := FromStruct(out, &resp)
	return resp.Items, err
}

func (c *Client) ExportJob(ctx context.Context, id uuid.UUID) ([]byte, error) {
	out := new(wrapperspb.BytesValue)
	if err := c.invoke(ctx, methodExport, map[string]any{"job_id": id.String()}, out); err != nil {
		return nil, err
	}
	return out.GetValue(), nil
}
