package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/viper"
	"github.com/tablerie/possync/internal/bus"
	"github.com/tablerie/possync/internal/dal/interfaces/istore"
	"github.com/tablerie/possync/internal/dal/postgres"
	"github.com/tablerie/possync/internal/dal/rabbitmq"
	"github.com/tablerie/possync/internal/dal/rest"
	"github.com/tablerie/possync/internal/dal/store/pgstore"
	"github.com/tablerie/possync/internal/otel"
	"github.com/tablerie/possync/internal/service/models/event"
	"github.com/tablerie/possync/internal/service/services/lifecyclesvc"
	httptransport "github.com/tablerie/possync/internal/transport/http"
	"github.com/tablerie/possync/internal/view"
	"github.com/tablerie/possync/internal/worker/reconciler"
	"github.com/tablerie/possync/internal/worker/relay"
)

var screenRoles = []event.Role{event.RoleServer, event.RoleKitchen, event.RoleCashier}

// App represents the application.
type App struct {
	lifecycleSvc   *lifecyclesvc.LifecycleService
	transport      *httptransport.HTTPTransport
	eventBus       *bus.Bus
	reconcilers    []*reconciler.Reconciler
	relayWorker    *relay.Worker
	conns          []*bus.Conn
	otelController *otel.OtelController
	postgresClient *postgres.Client
	rabbitClient   *rabbitmq.Client
}

// MustNewApp creates a new application.
func MustNewApp() *App {
	otelController := otel.MustInitOtel()

	var (
		store          istore.IStore
		postgresClient *postgres.Client
	)
	switch backend := viper.GetString("store.backend"); backend {
	case "postgres":
		postgresClient = postgres.MustNewClient()
		store = pgstore.NewPostgresStore(postgresClient)
	case "rest", "":
		store = rest.NewStore(rest.MustNewClient())
	default:
		panic(fmt.Sprintf("unknown store backend %q", backend))
	}

	eventBus := bus.New()

	lifecycleSvc := lifecyclesvc.MustNewLifecycleService(
		lifecyclesvc.WithStore(store),
		lifecyclesvc.WithBus(eventBus),
	)

	views := make(map[event.Role]*view.View, len(screenRoles))
	reconcilers := make([]*reconciler.Reconciler, 0, len(screenRoles))
	conns := make([]*bus.Conn, 0, len(screenRoles))
	for _, role := range screenRoles {
		v := view.New(role)
		views[role] = v
		reconcilers = append(reconcilers, reconciler.NewReconciler(role, store, eventBus, v))

		// Push delivery: new orders land in the view ahead of the next poll.
		conn := eventBus.Connect(role)
		conn.Subscribe(event.TypeOrderCreated, func(e event.Event) {
			if created, ok := e.(event.OrderCreated); ok {
				v.Apply(created.Order)
			}
		})
		conns = append(conns, conn)
	}

	rabbitClient := rabbitmq.MustNewClient()
	relayWorker := relay.NewWorker(eventBus, rabbitClient)

	transport := httptransport.NewHTTPTransport(lifecycleSvc, views)
	transport.RegisterRoutes()

	return &App{
		lifecycleSvc:   lifecycleSvc,
		transport:      transport,
		eventBus:       eventBus,
		reconcilers:    reconcilers,
		relayWorker:    relayWorker,
		conns:          conns,
		otelController: otelController,
		postgresClient: postgresClient,
		rabbitClient:   rabbitClient,
	}
}

// Run starts the application.
// Tracks interrupt signal to gracefully shut down the application.
func (a *App) Run() {
	// Create a channel to receive OS signals
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for _, r := range a.reconcilers {
		r := r
		go func() {
			if err := r.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("Reconciler error", "error", err)
			}
		}()
	}

	go func() {
		if err := a.relayWorker.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("Relay worker error", "error", err)
		}
	}()

	go func() {
		slog.Info("Starting HTTP server")
		if err := a.transport.Run(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
		}
	}()

	<-stop
	slog.Info("Shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := a.transport.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server stopped gracefully")
	}

	cancel()
	for _, r := range a.reconcilers {
		r.Stop()
	}
	a.relayWorker.Stop()
	for _, c := range a.conns {
		c.Close()
	}

	if err := a.rabbitClient.Close(); err != nil {
		slog.Error("RabbitMQ connection close error", "error", err)
	} else {
		slog.Info("RabbitMQ connection closed gracefully")
	}

	if a.postgresClient != nil {
		a.postgresClient.Close()
		slog.Info("Database connection closed gracefully")
	}

	if err := a.otelController.Shutdown(); err != nil {
		slog.Error("Trace provider shutdown error", "error", err)
	}

	slog.Info("Application shutdown complete")
}
