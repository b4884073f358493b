package handler

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/chopnow/storefront/internal/adapter/auth"
	"github.com/chopnow/storefront/internal/core/domain"
	"github.com/chopnow/storefront/internal/core/service"
)

type GRPCHandler struct {
	orderService     *service.OrderService
	dashboardService *service.DashboardService
}

func NewGRPCHandler(orderService *service.OrderService, dashboardService *service.DashboardService) *GRPCHandler {
	return &GRPCHandler{orderService: orderService, dashboardService: dashboardService}
}

func (h *GRPCHandler) TransitionOrder(ctx context.Context, req *TransitionOrderRequest) (*OrderReply, error) {
	order, err := h.orderService.Transition(ctx, auth.IdentityFromContext(ctx), req.OrderID, domain.OrderStatus(req.Status))
	if err != nil {
		return nil, grpcError(err)
	}
	return &OrderReply{Order: newOrderView(order)}, nil
}

func (h *GRPCHandler) ListActions(ctx context.Context, req *ListActionsRequest) (*ListActionsReply, error) {
	actions, err := h.orderService.Actions(ctx, auth.IdentityFromContext(ctx), req.OrderID)
	if err != nil {
		return nil, grpcError(err)
	}
	return &ListActionsReply{Actions: actions}, nil
}

func (h *GRPCHandler) GetDashboard(ctx context.Context, req *GetDashboardRequest) (*DashboardReply, error) {
	dash, err := h.dashboardService.Compose(ctx, auth.IdentityFromContext(ctx))
	if err != nil {
		return nil, grpcError(err)
	}
	return &DashboardReply{Dashboard: newDashboardView(dash)}, nil
}

func grpcError(err error) error {
	_, code, message := classify(err)
	return status.Error(code, message)
}

// AuthInterceptor resolves the bearer token in the authorization metadata.
// Calls without one continue anonymously and fail in the service layer.
func AuthInterceptor(a *auth.Authenticator) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		md, _ := metadata.FromIncomingContext(ctx)
		var token string
		if values := md.Get("authorization"); len(values) > 0 {
			token = auth.BearerToken(values[0])
		}
		if token == "" {
			return handler(ctx, req)
		}

		identity, err := a.Verify(ctx, token)
		if err != nil {
			return nil, grpcError(err)
		}
		return handler(auth.WithIdentity(ctx, identity), req)
	}
}

func LoggingInterceptor(logger zerolog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		event := logger.Info()
		if err != nil {
			event = logger.Warn().Err(err)
		}
		event.Str("method", info.FullMethod).
			Str("code", status.Code(err).String()).
			Dur("duration", time.Since(start)).
			Msg("grpc call")
		return resp, err
	}
}
