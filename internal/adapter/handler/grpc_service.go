package handler

import (
	"context"
	"encoding/json"

	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"

	"github.com/chopnow/storefront/internal/core/domain"
)

// JSONCodecName is the content-subtype clients select with
// grpc.CallContentSubtype. Messages are plain structs, so no generated
// protobuf code is involved.
const JSONCodecName = "json"

const orderServiceName = "chopnow.v1.OrderService"

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                       { return JSONCodecName }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

type TransitionOrderRequest struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
}

type ListActionsRequest struct {
	OrderID string `json:"order_id"`
}

type GetDashboardRequest struct{}

type OrderReply struct {
	Order orderView `json:"order"`
}

type ListActionsReply struct {
	Actions []domain.Action `json:"actions"`
}

type DashboardReply struct {
	Dashboard dashboardView `json:"dashboard"`
}

type OrderServiceServer interface {
	TransitionOrder(context.Context, *TransitionOrderRequest) (*OrderReply, error)
	ListActions(context.Context, *ListActionsRequest) (*ListActionsReply, error)
	GetDashboard(context.Context, *GetDashboardRequest) (*DashboardReply, error)
}

var OrderServiceDesc = grpc.ServiceDesc{
	ServiceName: orderServiceName,
	HandlerType: (*OrderServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod("TransitionOrder", OrderServiceServer.TransitionOrder),
		unaryMethod("ListActions", OrderServiceServer.ListActions),
		unaryMethod("GetDashboard", OrderServiceServer.GetDashboard),
	},
	Streams: []grpc.StreamDesc{},
}

func RegisterOrderServiceServer(s grpc.ServiceRegistrar, srv OrderServiceServer) {
	s.RegisterService(&OrderServiceDesc, srv)
}

func unaryMethod[Req, Resp any](name string, call func(OrderServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	fullMethod := "/" + orderServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(OrderServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(OrderServiceServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// OrderServiceClient calls the order service over a JSON-coded connection.
type OrderServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewOrderServiceClient(cc grpc.ClientConnInterface) *OrderServiceClient {
	return &OrderServiceClient{cc: cc}
}

func (c *OrderServiceClient) TransitionOrder(ctx context.Context, in *TransitionOrderRequest, opts ...grpc.CallOption) (*OrderReply, error) {
	out := new(OrderReply)
	return out, c.invoke(ctx, "TransitionOrder", in, out, opts)
}

func (c *OrderServiceClient) ListActions(ctx context.Context, in *ListActionsRequest, opts ...grpc.CallOption) (*ListActionsReply, error) {
	out := new(ListActionsReply)
	return out, c.invoke(ctx, "ListActions", in, out, opts)
}

func (c *OrderServiceClient) GetDashboard(ctx context.Context, in *GetDashboardRequest, opts ...grpc.CallOption) (*DashboardReply, error) {
	out := new(DashboardReply)
	return out, c.invoke(ctx, "GetDashboard", in, out, opts)
}

func (c *OrderServiceClient) invoke(ctx context.Context, method string, in, out any, opts []grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(JSONCodecName)}, opts...)
	return c.cc.Invoke(ctx, "/"+orderServiceName+"/"+method, in, out, opts...)
}
