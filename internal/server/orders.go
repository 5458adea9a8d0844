package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/joseph-ayodele/medorders/internal/async"
	"github.com/joseph-ayodele/medorders/internal/common"
	"github.com/joseph-ayodele/medorders/internal/entity"
	"github.com/joseph-ayodele/medorders/internal/ingest"
	"github.com/joseph-ayodele/medorders/internal/pipeline"
)

// Pipeline is satisfied by *pipeline.Pipeline.
type Pipeline interface {
	Config() common.PipelineConfig
	Extract(ctx context.Context, data []byte, filename string) (entity.ParsedOrder, error)
	ExtractAndPersist(ctx context.Context, data []byte, filename string) (*pipeline.Processed, error)
	CreateOrder(ctx context.Context, req entity.OrderRequest) (*entity.CreateOrderResult, error)
}

// OrderReader is satisfied by *orders.Service.
type OrderReader interface {
	Get(ctx context.Context, id int) (*entity.Order, error)
}

// Exporter is satisfied by *export.Service.
type Exporter interface {
	OrdersXLSX(ctx context.Context, since time.Time) ([]byte, error)
}

type OrdersService struct {
	pipeline Pipeline
	orders   OrderReader
	exporter Exporter
	queue    async.Queue
	logger   *slog.Logger
}

var _ OrdersServer = (*OrdersService)(nil)

// NewOrdersService wires the service. queue may be nil, in which case
// SubmitDocument fails with Unavailable.
func NewOrdersService(p Pipeline, orders OrderReader, exporter Exporter, queue async.Queue, logger *slog.Logger) *OrdersService {
	if logger == nil {
		logger = slog.Default()
	}
	return &OrdersService{pipeline: p, orders: orders, exporter: exporter, queue: queue, logger: logger}
}

// documentRequest is the JSON shape of ParseOrder and ProcessOrder requests.
// Either Path (readable by the server) or Content (base64) must be set.
type documentRequest struct {
	Path     string `json:"path"`
	Filename string `json:"filename"`
	Content  string `json:"content"`
}

func (s *OrdersService) ParseOrder(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	data, filename, err := s.document(req)
	if err != nil {
		return nil, toStatus(err)
	}
	parsed, err := s.pipeline.Extract(ctx, data, filename)
	if err != nil {
		s.logger.Warn("parse order failed", "filename", filename, "kind", common.Kind(err), "error", err)
		return nil, toStatus(err)
	}
	return toStruct(parsed)
}

func (s *OrdersService) ProcessOrder(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	data, filename, err := s.document(req)
	if err != nil {
		return nil, toStatus(err)
	}
	processed, err := s.pipeline.ExtractAndPersist(ctx, data, filename)
	if err != nil {
		s.logger.Warn("process order failed", "filename", filename, "kind", common.Kind(err), "error", err)
		return nil, toStatus(err)
	}
	return toStruct(processed)
}

func (s *OrdersService) CreateOrder(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var orderReq entity.OrderRequest
	if err := fromStruct(req, &orderReq); err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "malformed order request: %v", err)
	}
	res, err := s.pipeline.CreateOrder(ctx, orderReq)
	if err != nil {
		s.logger.Warn("create order failed", "kind", common.Kind(err), "error", err)
		return nil, toStatus(err)
	}
	return toStruct(res)
}

func (s *OrdersService) GetOrder(ctx context.Context, req *wrapperspb.Int64Value) (*structpb.Struct, error) {
	id := req.GetValue()
	if id <= 0 {
		return nil, status.Error(codes.InvalidArgument, "order id must be positive")
	}
	order, err := s.orders.Get(ctx, int(id))
	if err != nil {
		return nil, toStatus(err)
	}
	return toStruct(order)
}

func (s *OrdersService) SubmitDocument(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	if s.queue == nil {
		return nil, status.Error(codes.Unavailable, "background processing is disabled")
	}
	path := strings.TrimSpace(req.GetValue())
	if path == "" {
		return nil, status.Error(codes.InvalidArgument, "path is required")
	}
	ctx, rid := common.EnsureRequestID(ctx)
	if err := s.queue.Enqueue(ctx, async.Job{Path: path, SubmittedAt: time.Now(), TraceID: rid}); err != nil {
		return nil, status.Errorf(codes.Unavailable, "enqueue: %v", err)
	}
	s.logger.Info("document queued", "path", path, "req_id", rid)
	return structpb.NewStruct(map[string]any{"queued": true, "path": path, "req_id": rid})
}

func (s *OrdersService) ExportOrders(ctx context.Context, req *wrapperspb.StringValue) (*wrapperspb.BytesValue, error) {
	var since time.Time
	if v := strings.TrimSpace(req.GetValue()); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return nil, status.Error(codes.InvalidArgument, "since must be an RFC 3339 timestamp")
		}
		since = t
	}
	xlsx, err := s.exporter.OrdersXLSX(ctx, since)
	if err != nil {
		s.logger.Error("export.xlsx.failed", "error", err)
		return nil, toStatus(err)
	}
	return wrapperspb.Bytes(xlsx), nil
}

func (s *OrdersService) document(req *structpb.Struct) ([]byte, string, error) {
	var doc documentRequest
	if err := fromStruct(req, &doc); err != nil {
		return nil, "", common.InvalidRequestShape(fmt.Sprintf("malformed document request: %v", err), "document")
	}
	limit := s.pipeline.Config().MaxDocumentBytes

	switch {
	case doc.Path != "" && doc.Content != "":
		return nil, "", common.InvalidRequestShape("provide either path or content, not both", "path", "content")
	case doc.Path != "":
		d, err := ingest.ReadDocument(doc.Path, limit)
		if err != nil {
			return nil, "", err
		}
		return d.Data, d.Filename, nil
	case doc.Content != "":
		data, err := base64.StdEncoding.DecodeString(doc.Content)
		if err != nil {
			return nil, "", common.InvalidRequestShape("content must be base64", "content")
		}
		filename := doc.Filename
		if filename == "" {
			filename = "document.pdf"
		}
		if err := ingest.ValidateDocument(data, filename, limit); err != nil {
			return nil, "", err
		}
		return data, filename, nil
	default:
		return nil, "", common.InvalidRequestShape("path or content is required", "path", "content")
	}
}

func toStruct(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(b, out); err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return out, nil
}

func fromStruct(s *structpb.Struct, v any) error {
	b, err := protojson.Marshal(s)
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
