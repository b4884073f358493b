package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"

	"github.com/chopnow/storefront/internal/adapter/handler"
	"github.com/chopnow/storefront/internal/adapter/storage"
	"github.com/chopnow/storefront/internal/app"
	"github.com/chopnow/storefront/internal/config"
	"github.com/chopnow/storefront/internal/core/domain"
	"github.com/chopnow/storefront/internal/logging"
	"github.com/chopnow/storefront/internal/seed"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "chopnow",
	Short:        "ChopNow storefront API",
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP and gRPC servers",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := boot()
		if err != nil {
			return err
		}
		return serve(cmd.Context(), cfg, logger)
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create missing MySQL tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := boot()
		if err != nil {
			return err
		}
		db, err := app.OpenMySQL(cmd.Context(), cfg.Store.MySQLDSN)
		if err != nil {
			return err
		}
		defer db.Close()

		if err := storage.Migrate(cmd.Context(), db); err != nil {
			return err
		}
		logger.Info().Msg("schema up to date")
		return nil
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load the demo storefront and print a token per demo user",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := boot()
		if err != nil {
			return err
		}
		if cfg.Store.Driver == config.StoreMemory {
			return errors.New("seed writes to MySQL; the memory store is seeded by serve")
		}
		a, err := app.Open(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := seed.Load(cmd.Context(), a.DB, seed.Demo(time.Now().UTC())); err != nil {
			return err
		}
		if err := requireSharedSessions(cfg); err != nil {
			logger.Warn().Err(err).Msg("demo data loaded, no tokens printed")
			return nil
		}
		return printDemoTokens(cmd.Context(), a, cmd)
	},
}

var (
	tokenUser string
	tokenRole string
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a bearer token for a user",
	RunE: func(cmd *cobra.Command, args []string) error {
		role, err := domain.ParseRole(tokenRole)
		if err != nil {
			return err
		}
		cfg, logger, err := boot()
		if err != nil {
			return err
		}
		if err := requireSharedSessions(cfg); err != nil {
			return err
		}
		a, err := app.Open(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		token, _, err := a.Auth.Issue(cmd.Context(), tokenUser, role)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenUser, "user", seed.CustomerID, "user id")
	tokenCmd.Flags().StringVar(&tokenRole, "role", string(domain.RoleCustomer), "customer, vendor or admin")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(tokenCmd)
}

func boot() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	return cfg, logging.New(cfg), nil
}

// requireSharedSessions rejects configs whose sessions would live only in
// this process, since a token issued here could never verify on a server.
func requireSharedSessions(cfg *config.Config) error {
	if cfg.Redis.Addr == "" {
		return errors.New("REDIS_ADDR is empty: sessions would not be shared with the server")
	}
	return nil
}

func serve(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	if cfg.Store.Driver == config.StoreMemory {
		if err := printDemoTokens(ctx, a, nil); err != nil {
			return err
		}
	}

	grpcServer := grpc.NewServer(grpc.ChainUnaryInterceptor(
		handler.LoggingInterceptor(logger),
		handler.AuthInterceptor(a.Auth),
	))
	handler.RegisterOrderServiceServer(grpcServer, handler.NewGRPCHandler(a.Services.Orders, a.Services.Dashboards))

	lis, err := net.Listen("tcp", cfg.GRPC.Addr)
	if err != nil {
		return fmt.Errorf("listen grpc: %w", err)
	}

	httpHandler := handler.NewHTTPHandler(a.Services, a.Auth, a.Sessions,
		handler.NewRateLimiter(cfg.Checkout.RatePerSecond, cfg.Checkout.Burst), logger)
	httpServer, cancelRequests := newHTTPServer(cfg.HTTP.Addr, httpHandler.Routes())
	defer cancelRequests()

	errs := make(chan error, 2)
	go func() {
		logger.Info().Str("addr", cfg.GRPC.Addr).Msg("gRPC server listening")
		if err := grpcServer.Serve(lis); err != nil {
			errs <- fmt.Errorf("grpc server: %w", err)
		}
	}()
	go func() {
		logger.Info().Str("addr", cfg.HTTP.Addr).Msg("HTTP server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutting down")
	case err = <-errs:
		logger.Error().Err(err).Msg("server failed")
	}

	if serr := shutdownHTTP(httpServer, cancelRequests, cfg.HTTP.ShutdownTimeout); serr != nil {
		logger.Warn().Err(serr).Msg("HTTP shutdown incomplete")
	}
	logger.Info().Msg("HTTP server stopped")

	grpcServer.GracefulStop()
	logger.Info().Msg("gRPC server stopped")
	return err
}

// newHTTPServer runs requests on a context of their own, so a signal does
// not cancel them before Shutdown can drain them. The returned cancel ends
// whatever is still running, including hijacked dashboard streams.
func newHTTPServer(addr string, h http.Handler) (*http.Server, context.CancelFunc) {
	requestCtx, cancel := context.WithCancel(context.Background())
	return &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return requestCtx },
	}, cancel
}

func shutdownHTTP(srv *http.Server, cancelRequests context.CancelFunc, timeout time.Duration) error {
	defer cancelRequests()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return srv.Shutdown(ctx)
}

// printDemoTokens issues a token for every demo user. With cmd nil the
// tokens go to the log.
func printDemoTokens(ctx context.Context, a *app.App, cmd *cobra.Command) error {
	users := []struct {
		id   string
		role domain.Role
	}{
		{seed.CustomerID, domain.RoleCustomer},
		{seed.VendorOwnerID, domain.RoleVendor},
		{seed.ApplicantID, domain.RoleVendor},
		{seed.AdminID, domain.RoleAdmin},
	}
	for _, u := range users {
		token, _, err := a.Auth.Issue(ctx, u.id, u.role)
		if err != nil {
			return err
		}
		if cmd == nil {
			a.Logger.Info().Str("user_id", u.id).Str("role", string(u.role)).Str("token", token).Msg("demo token")
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%-8s %-20s %s\n", u.role, u.id, token)
	}
	return nil
}
