package handler

import (
	"context"
	"net"
	"testing"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/chopnow/storefront/internal/core/domain"
)

func newGRPCClient(t *testing.T, env *testEnv) *OrderServiceClient {
	t.Helper()
	lis := bufconn.Listen(1 << 20)

	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(
		LoggingInterceptor(zerolog.Nop()),
		AuthInterceptor(env.auth),
	))
	RegisterOrderServiceServer(srv, NewGRPCHandler(env.services.Orders, env.services.Dashboards))
	go srv.Serve(lis)
	t.Cleanup(srv.Stop)

	cc, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("grpc client: %v", err)
	}
	t.Cleanup(func() { cc.Close() })
	return NewOrderServiceClient(cc)
}

func withToken(token string) context.Context {
	return metadata.AppendToOutgoingContext(context.Background(), "authorization", "Bearer "+token)
}

func TestGRPC_TransitionOrder(t *testing.T) {
	env := newTestEnv(t, nil)
	env.insertOrder(t, "order-1", domain.OrderStatusPending)
	client := newGRPCClient(t, env)

	_, err := client.TransitionOrder(context.Background(), &TransitionOrderRequest{OrderID: "order-1", Status: "confirmed"})
	if status.Code(err) != codes.Unauthenticated {
		t.Errorf("expected Unauthenticated, got %v", err)
	}

	_, err = client.TransitionOrder(withToken(env.customer), &TransitionOrderRequest{OrderID: "order-1", Status: "confirmed"})
	if status.Code(err) != codes.PermissionDenied {
		t.Errorf("expected PermissionDenied, got %v", err)
	}

	reply, err := client.TransitionOrder(withToken(env.vendor), &TransitionOrderRequest{OrderID: "order-1", Status: "confirmed"})
	if err != nil {
		t.Fatalf("transition failed: %v", err)
	}
	if reply.Order.Status != domain.OrderStatusConfirmed {
		t.Errorf("expected confirmed, got %s", reply.Order.Status)
	}

	_, err = client.TransitionOrder(withToken(env.vendor), &TransitionOrderRequest{OrderID: "order-1", Status: "delivered"})
	if status.Code(err) != codes.FailedPrecondition {
		t.Errorf("expected FailedPrecondition, got %v", err)
	}
}

func TestGRPC_ListActionsAndDashboard(t *testing.T) {
	env := newTestEnv(t, nil)
	env.insertOrder(t, "order-1", domain.OrderStatusPending)
	client := newGRPCClient(t, env)

	actions, err := client.ListActions(withToken(env.customer), &ListActionsRequest{OrderID: "order-1"})
	if err != nil {
		t.Fatalf("list actions failed: %v", err)
	}
	if len(actions.Actions) != 1 || actions.Actions[0].Kind != domain.ActionCancel {
		t.Errorf("expected only cancel for the customer, got %v", actions.Actions)
	}

	dash, err := client.GetDashboard(withToken(env.admin), &GetDashboardRequest{})
	if err != nil {
		t.Fatalf("dashboard failed: %v", err)
	}
	if dash.Dashboard.Role != domain.RoleAdmin {
		t.Errorf("expected admin dashboard, got %s", dash.Dashboard.Role)
	}

	_, err = client.GetDashboard(withToken("not-a-token"), &GetDashboardRequest{})
	if status.Code(err) != codes.Unauthenticated {
		t.Errorf("expected Unauthenticated for a bad token, got %v", err)
	}
}
