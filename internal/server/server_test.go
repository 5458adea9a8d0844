package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/joseph-ayodele/medorders/internal/async"
	"github.com/joseph-ayodele/medorders/internal/common"
	"github.com/joseph-ayodele/medorders/internal/entity"
	"github.com/joseph-ayodele/medorders/internal/export"
	"github.com/joseph-ayodele/medorders/internal/extract"
	"github.com/joseph-ayodele/medorders/internal/ocr"
	"github.com/joseph-ayodele/medorders/internal/orders"
	"github.com/joseph-ayodele/medorders/internal/pipeline"
	"github.com/joseph-ayodele/medorders/internal/repository"
)

var testPDF = []byte("%PDF-1.7\n")

type stubAcquirer struct {
	res ocr.Result
	err error
}

func (s stubAcquirer) Acquire(context.Context, []byte, string) (ocr.Result, error) {
	return s.res, s.err
}

type cannedCompleter struct{ out string }

func (c cannedCompleter) Complete(context.Context, string) (string, error) { return c.out, nil }
func (c cannedCompleter) Model() string { return "canned" }

type recordingQueue struct {
	jobs []async.Job
}

func (q *recordingQueue) Enqueue(_ context.Context, job async.Job) error {
	q.jobs = append(q.jobs, job)
	return nil
}
func (q *recordingQueue) Shutdown(context.Context) {}

const modelOutput = `{
	"patient": {"medical_record_number": "MRN-1", "first_name": "Ada", "last_name": "Byron", "age": 36},
	"prescriber": {"first_name": "Grace", "last_name": "Hopper", "npi": "1234567890"},
	"devices": [{"name": "CPAP Machine", "sku": "CP-1", "quantity": 1}],
	"order": {"item_name": "CPAP Machine", "item_quantity": 1, "reason_prescribed": "Sleep apnea"}
}`

type fixture struct {
	client *OrdersClient
	conn   *grpc.ClientConn
	queue  *recordingQueue
	acq    *stubAcquirer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	db, err := repository.OpenSQLite(ctx, "", nil)
	require.NoError(t, err)
	t.Cleanup(db.Close)
	require.NoError(t, db.Migrate(ctx))

	cfg := common.DefaultPipelineConfig()
	svc := orders.NewService(db, cfg, nil)
	acq := &stubAcquirer{res: ocr.Result{Text: "Patient Ada Byron", Tier: entity.TierNative, Pages: 1}}
	p := pipeline.New(cfg, acq, extract.NewLLMExtractor(cannedCompleter{out: modelOutput}, nil), svc, nil)
	queue := &recordingQueue{}

	grpcServer, _ := NewGRPCServer(NewOrdersService(p, svc, export.NewService(svc, nil), queue, nil), nil)
	lis := bufconn.Listen(1 << 20)
	go func() { _ = grpcServer.Serve(lis) }()
	t.Cleanup(grpcServer.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return &fixture{client: NewOrdersClient(conn), conn: conn, queue: queue, acq: acq}
}

func mustStruct(t *testing.T, m map[string]any) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(m)
	require.NoError(t, err)
	return s
}

func callCtx(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func errorReason(t *testing.T, err error) string {
	t.Helper()
	st, ok := status.FromError(err)
	require.True(t, ok)
	for _, d := range st.Details() {
		if info, ok := d.(*errdetails.ErrorInfo); ok {
			return info.GetReason()
		}
	}
	return ""
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	resp, err := healthpb.NewHealthClient(f.conn).Check(callCtx(t), &healthpb.HealthCheckRequest{Service: ServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
}

func TestParseOrder(t *testing.T) {
	f := newFixture(t)
	var header metadata.MD
	ctx := metadata.AppendToOutgoingContext(callCtx(t), RequestIDHeader, "rid-42")
	resp, err := f.client.ParseOrder(ctx, mustStruct(t, map[string]any{
		"filename": "ada.pdf",
		"content":  base64.StdEncoding.EncodeToString(testPDF),
	}), grpc.Header(&header))
	require.NoError(t, err)

	got := resp.AsMap()
	assert.Equal(t, "MRN-1", got["patient"].(map[string]any)["medical_record_number"])
	assert.Equal(t, "Extracted from ada.pdf (native text) using Ollama (canned)", got["extraction_notes"])
	assert.Equal(t, []string{"rid-42"}, header.Get(RequestIDHeader))
}

func TestParseOrder_InvalidDocument(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name string
		req  map[string]any
	}{
		{name: "nothing", req: map[string]any{}},
		{name: "not base64", req: map[string]any{"content": "***"}},
		{name: "not a pdf", req: map[string]any{"content": base64.StdEncoding.EncodeToString([]byte("hello"))}},
		{name: "both", req: map[string]any{"path": "/tmp/a.pdf", "content": "JVBERi0="}},
		{name: "unknown field", req: map[string]any{"document": "x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.client.ParseOrder(callCtx(t), mustStruct(t, tt.req))
			assert.Equal(t, codes.InvalidArgument, status.Code(err))
			assert.Equal(t, "INVALID_REQUEST_SHAPE", errorReason(t, err))
		})
	}
}

func TestParseOrder_Unreadable(t *testing.T) {
	f := newFixture(t)
	f.acq.err = common.UnreadableDocument(0)
	_, err := f.client.ParseOrder(callCtx(t), mustStruct(t, map[string]any{
		"content": base64.StdEncoding.EncodeToString(testPDF),
	}))
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))
	assert.Equal(t, "UNREADABLE_DOCUMENT", errorReason(t, err))
	assert.Contains(t, status.Convert(err).Message(), "Extracted 0 characters")
}

func TestProcessOrderThenGetAndExport(t *testing.T) {
	f := newFixture(t)
	resp, err := f.client.ProcessOrder(callCtx(t), mustStruct(t, map[string]any{
		"filename": "ada.pdf",
		"content":  base64.StdEncoding.EncodeToString(testPDF),
	}))
	require.NoError(t, err)
	order := resp.AsMap()["result"].(map[string]any)["order"].(map[string]any)
	id := int64(order["id"].(float64))
	require.Positive(t, id)

	got, err := f.client.GetOrder(callCtx(t), wrapperspb.Int64(id))
	require.NoError(t, err)
	assert.Equal(t, "CPAP Machine", got.AsMap()["item_name"])
	devices := got.AsMap()["devices"].([]any)
	require.Len(t, devices, 1)
	assert.Equal(t, "CP-1", devices[0].(map[string]any)["sku"])

	xlsx, err := f.client.ExportOrders(callCtx(t), wrapperspb.String(""))
	require.NoError(t, err)
	wb, err := excelize.OpenReader(bytes.NewReader(xlsx.GetValue()))
	require.NoError(t, err)
	defer func() { _ = wb.Close() }()
	rows, err := wb.GetRows("Orders")
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestCreateOrder(t *testing.T) {
	f := newFixture(t)
	req := map[string]any{
		"patient":    map[string]any{"medical_record_number": "MRN-9", "first_name": "Ann", "last_name": "Lee"},
		"prescriber": map[string]any{"first_name": "Bo", "last_name": "Kim", "npi": "1111111111"},
		"device_ids": []any{},
		"item_name":  "Glucose Monitor",
	}
	first, err := f.client.CreateOrder(callCtx(t), mustStruct(t, req))
	require.NoError(t, err)
	assert.Equal(t, false, first.AsMap()["has_duplicates"])

	req["item_name"] = "glucose monitor plus sensor"
	second, err := f.client.CreateOrder(callCtx(t), mustStruct(t, req))
	require.NoError(t, err)
	m := second.AsMap()
	assert.Equal(t, true, m["has_duplicates"])
	warnings := m["duplicate_warnings"].([]any)
	require.Len(t, warnings, 1)
	assert.Equal(t, float64(2), warnings[0].(map[string]any)["similarity_score"])
}

func TestCreateOrder_Errors(t *testing.T) {
	f := newFixture(t)

	_, err := f.client.CreateOrder(callCtx(t), mustStruct(t, map[string]any{
		"patient_id":    float64(1),
		"prescriber_id": float64(1),
		"device_ids":    []any{float64(999)},
	}))
	assert.Equal(t, codes.NotFound, status.Code(err))
	assert.Equal(t, "UNKNOWN_ENTITY_REFERENCE", errorReason(t, err))

	_, err = f.client.CreateOrder(callCtx(t), mustStruct(t, map[string]any{"prescriber_id": float64(1)}))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = f.client.CreateOrder(callCtx(t), mustStruct(t, map[string]any{"bogus": true}))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestGetOrder_Errors(t *testing.T) {
	f := newFixture(t)
	_, err := f.client.GetOrder(callCtx(t), wrapperspb.Int64(0))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = f.client.GetOrder(callCtx(t), wrapperspb.Int64(12345))
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestSubmitDocument(t *testing.T) {
	f := newFixture(t)
	resp, err := f.client.SubmitDocument(callCtx(t), wrapperspb.String("/inbox/a.pdf"))
	require.NoError(t, err)
	assert.Equal(t, true, resp.AsMap()["queued"])
	require.Len(t, f.queue.jobs, 1)
	assert.Equal(t, "/inbox/a.pdf", f.queue.jobs[0].Path)
	assert.NotEmpty(t, f.queue.jobs[0].TraceID)

	_, err = f.client.SubmitDocument(callCtx(t), wrapperspb.String(" "))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestToStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code codes.Code
	}{
		{"inference", common.InferenceUnavailable("Ollama is not running", nil), codes.Unavailable},
		{"malformed", common.MalformedModelOutput("bad", "not json", nil), codes.FailedPrecondition},
		{"incomplete", common.IncompleteExtraction("patient.last_name"), codes.FailedPrecondition},
		{"constraint", common.ConstraintViolation("x", errors.New("driver detail")), codes.Aborted},
		{"cancelled", context.Canceled, codes.Canceled},
		{"deadline", context.DeadlineExceeded, codes.DeadlineExceeded},
		{"unclassified", errors.New("pq: secret detail"), codes.Internal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := status.Convert(toStatus(tt.err))
			assert.Equal(t, tt.code, st.Code())
			assert.NotContains(t, st.Message(), "detail")
		})
	}
	assert.NoError(t, toStatus(nil))
}
