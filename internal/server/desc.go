package server

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "medorders.v1.OrdersService"

// OrdersServer is the server API for the orders service. Payloads are
// well-known protobuf types; their JSON shapes mirror the entity package.
type OrdersServer interface {
	// ParseOrder extracts an order from a document without persisting it.
	ParseOrder(context.Context, *structpb.Struct) (*structpb.Struct, error)
	// ProcessOrder extracts and persists an order from a document.
	ProcessOrder(context.Context, *structpb.Struct) (*structpb.Struct, error)
	// CreateOrder persists an order request.
	CreateOrder(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetOrder(context.Context, *wrapperspb.Int64Value) (*structpb.Struct, error)
	// SubmitDocument queues a server-local file for background processing.
	SubmitDocument(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	// ExportOrders returns an XLSX workbook of orders created since an RFC 3339 time.
	ExportOrders(context.Context, *wrapperspb.StringValue) (*wrapperspb.BytesValue, error)
}

func RegisterOrdersServer(s grpc.ServiceRegistrar, srv OrdersServer) {
	s.RegisterService(&OrdersServiceDesc, srv)
}

func unaryHandler[Req any, Resp any](method string, call func(OrdersServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(OrdersServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + method}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(OrdersServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

var OrdersServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*OrdersServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryHandler("ParseOrder", OrdersServer.ParseOrder),
		unaryHandler("ProcessOrder", OrdersServer.ProcessOrder),
		unaryHandler("CreateOrder", OrdersServer.CreateOrder),
		unaryHandler("GetOrder", OrdersServer.GetOrder),
		unaryHandler("SubmitDocument", OrdersServer.SubmitDocument),
		unaryHandler("ExportOrders", OrdersServer.ExportOrders),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "medorders/v1/orders.proto",
}

// OrdersClient calls OrdersServer over a client connection.
type OrdersClient struct {
	cc grpc.ClientConnInterface
}

func NewOrdersClient(cc grpc.ClientConnInterface) *OrdersClient {
	return &OrdersClient{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts ...grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	if err := cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *OrdersClient) ParseOrder(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return invoke[structpb.Struct](ctx, c.cc, "ParseOrder", in, opts...)
}

func (c *OrdersClient) ProcessOrder(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return invoke[structpb.Struct](ctx, c.cc, "ProcessOrder", in, opts...)
}

func (c *OrdersClient) CreateOrder(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return invoke[structpb.Struct](ctx, c.cc, "CreateOrder", in, opts...)
}

func (c *OrdersClient) GetOrder(ctx context.Context, in *wrapperspb.Int64Value, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return invoke[structpb.Struct](ctx, c.cc, "GetOrder", in, opts...)
}

func (c *OrdersClient) SubmitDocument(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return invoke[structpb.Struct](ctx, c.cc, "SubmitDocument", in, opts...)
}

func (c *OrdersClient) ExportOrders(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*wrapperspb.BytesValue, error) {
	return invoke[wrapperspb.BytesValue](ctx, c.cc, "ExportOrders", in, opts...)
}
