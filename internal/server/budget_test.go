package server

import (
	"bytes"
	"context"
	"errors"
	"net"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/innovacioninteligente/dochevi-construc-sub000/constants"
	"github.com/innovacioninteligente/dochevi-construc-sub000/internal/common"
	"github.com/innovacioninteligente/dochevi-construc-sub000/internal/entity"
	"github.com/innovacioninteligente/dochevi-construc-sub000/internal/repository"
)

type stubProcessor struct {
	mu      sync.Mutex
	gotMime string
	gotData []byte
	err     error
}

func (p *stubProcessor) ProcessDocument(_ context.Context, data []byte, mimeType, _ string) (entity.BudgetResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.gotMime, p.gotData = mimeType, data
	if p.err != nil {
		return entity.BudgetResult{}, p.err
	}
	it := entity.NewPricedItem(entity.MeasurementItem{Order: 1, Description: "Demolición de tabique", Unit: "m2", Quantity: 10, Chapter: "01 DEMOLICIONES"}, 12.5, constants.KindLabor, 85)
	return entity.BudgetResult{Items: []entity.PricedMeasurementItem{it}, PageCount: 1, Path: string(constants.PathText)}, nil
}

type repoSubmitter struct {
	repo repository.BudgetRepository
}

func (s repoSubmitter) Submit(ctx context.Context, sourceName, mimeType string, _ []byte, key string) (uuid.UUID, error) {
	job, err := s.repo.Create(ctx, sourceName, mimeType, key, constants.JobStatusQueued)
	if err != nil {
		return uuid.Nil, err
	}
	return job.ID, nil
}

type stubExporter struct{}

func (stubExporter) ExportJobXLSX(_ context.Context, id uuid.UUID) ([]byte, error) {
	return []byte("xlsx:" + id.String()), nil
}

type fixture struct {
	client *Client
	conn   *grpc.ClientConn
	proc   *stubProcessor
	repo   repository.BudgetRepository
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	db, err := repository.OpenSQLite(":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(db.Close)
	require.NoError(t, db.Migrate(context.Background()))
	repo := repository.NewBudgetRepository(db, nil)

	proc := &stubProcessor{}
	srv, _ := NewGRPCServer(NewBudgetServer(proc, repoSubmitter{repo}, repo, stubExporter{}, nil), nil)
	lis := bufconn.Listen(1 << 20)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	opts := append(DialOptions(),
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	conn, err := grpc.NewClient("passthrough:///bufnet", opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return fixture{client: NewClient(conn), conn: conn, proc: proc, repo: repo}
}

func TestProcessDocumentRoundTrip(t *testing.T) {
	f := newFixture(t)
	res, err := f.client.ProcessDocument(context.Background(), "obra.txt", "text/plain; charset=utf-8", []byte("01.01 Demolición"), "sub-1")
	require.NoError(t, err)

	require.Len(t, res.Items, 1)
	assert.Equal(t, "Demolición de tabique", res.Items[0].Description)
	assert.InDelta(t, 125.0, res.Items[0].TotalPrice, 1e-9)
	assert.Equal(t, constants.MimeText, f.proc.gotMime)
	assert.Equal(t, []byte("01.01 Demolición"), f.proc.gotData)
}

func TestProcessDocumentAcceptsLargeScans(t *testing.T) {
	f := newFixture(t)
	scan := bytes.Repeat([]byte("a"), 5<<20)

	res, err := f.client.ProcessDocument(context.Background(), "obra.pdf", constants.MimePDF, scan, "")
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Len(t, f.proc.gotData, len(scan))

	id, err := f.client.SubmitDocument(context.Background(), "obra.pdf", constants.MimePDF, scan, "")
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, id)
}

func TestProcessDocumentValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.client.ProcessDocument(ctx, "a.pdf", constants.MimePDF, nil, "")
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = f.client.ProcessDocument(ctx, "a.doc", "application/msword", []byte("x"), "")
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestProcessDocumentMapsErrors(t *testing.T) {
	f := newFixture(t)
	f.proc.err = common.NewAppError("UNSUPPORTED", "no content", common.ErrUnsupported)
	_, err := f.client.ProcessDocument(context.Background(), "a.pdf", constants.MimePDF, []byte("%PDF"), "")
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	f.proc.err = errors.New("boom")
	_, err = f.client.ProcessDocument(context.Background(), "a.pdf", constants.MimePDF, []byte("%PDF"), "")
	assert.Equal(t, codes.Internal, status.Code(err))
}

func TestSubmitAndQueryJobs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id, err := f.client.SubmitDocument(ctx, "mediciones.pdf", constants.MimePDF, []byte("%PDF-1.4"), "sub-2")
	require.NoError(t, err)

	job, err := f.client.GetJob(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, job.ID)
	assert.Equal(t, "mediciones.pdf", job.SourceName)
	assert.Equal(t, string(constants.JobStatusQueued), job.Status)

	jobs, err := f.client.ListJobs(ctx, 0)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, id, jobs[0].ID)

	items, err := f.client.ListItems(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, items)

	data, err := f.client.ExportJob(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "xlsx:"+id.String(), string(data))
}

func TestGetJobErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.client.GetJob(ctx, uuid.New())
	assert.Equal(t, codes.NotFound, status.Code(err))

	out := new(structpb.Struct)
	err = f.conn.Invoke(ctx, fullMethod(methodGetJob), &structpb.Struct{}, out)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	bad, err := structpb.NewStruct(map[string]any{"job_id": "not-a-uuid"})
	require.NoError(t, err)
	err = f.conn.Invoke(ctx, fullMethod(methodItems), bad, out)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestHealthServing(t *testing.T) {
	f := newFixture(t)
	resp, err := grpc_health_v1.NewHealthClient(f.conn).Check(context.Background(), &grpc_health_v1.HealthCheckRequest{Service: ServiceName})
	require.NoError(t, err)
	assert.Equal(t, grpc_health_v1.HealthCheckResponse_SERVING, resp.GetStatus())
}
