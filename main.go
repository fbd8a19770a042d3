package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	appcatalog "github.com/Zhima-Mochi/minishop-bookstore/internal/application/catalog"
	apporder "github.com/Zhima-Mochi/minishop-bookstore/internal/application/order"
	apppayment "github.com/Zhima-Mochi/minishop-bookstore/internal/application/payment"
	"github.com/Zhima-Mochi/minishop-bookstore/internal/clock"
	"github.com/Zhima-Mochi/minishop-bookstore/internal/config"
	"github.com/Zhima-Mochi/minishop-bookstore/internal/infrastructure/filestore"
	"github.com/Zhima-Mochi/minishop-bookstore/internal/infrastructure/flatfile"
	"github.com/Zhima-Mochi/minishop-bookstore/internal/infrastructure/id"
	"github.com/Zhima-Mochi/minishop-bookstore/internal/infrastructure/memory"
	infraobs "github.com/Zhima-Mochi/minishop-bookstore/internal/infrastructure/observability"
	"github.com/Zhima-Mochi/minishop-bookstore/internal/infrastructure/observability/oteltrace"
	"github.com/Zhima-Mochi/minishop-bookstore/internal/infrastructure/observability/prometrics"
	"github.com/Zhima-Mochi/minishop-bookstore/internal/infrastructure/observability/zaplogger"
	"github.com/Zhima-Mochi/minishop-bookstore/internal/infrastructure/outbox"
	"github.com/Zhima-Mochi/minishop-bookstore/internal/observability"
	"github.com/Zhima-Mochi/minishop-bookstore/internal/pkg/logging"
	httppresentation "github.com/Zhima-Mochi/minishop-bookstore/internal/presentation/http"
	workerpresentation "github.com/Zhima-Mochi/minishop-bookstore/internal/presentation/worker"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	baseLogger := logging.MustNewLogger(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	defer func() { _ = baseLogger.Sync() }()
	zap.ReplaceGlobals(baseLogger)

	systemLogger := logging.WithTrace(baseLogger, logging.SystemTraceID, logging.SystemSpanID)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, baseLogger); err != nil {
		systemLogger.Error("bookstore_exit", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, baseLogger *zap.Logger) error {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{},
	))

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	tel := infraobs.New(
		oteltrace.New(cfg.ServiceName),
		zaplogger.Wrap(baseLogger),
		infraobs.StandardInstruments(prometrics.New(cfg.MetricsNamespace, "", registry)),
	)
	log := tel.Logger().With(observability.F("component", "main"))

	// Books first: reloading orders prices legacy lines from the catalog.
	bookFile := flatfile.NewBookFile(filestore.New(cfg.BooksFile()), tel)
	books, err := bookFile.Load(ctx)
	if err != nil {
		return err
	}
	bookRepo := memory.NewCatalogRepository(books, bookFile)

	orderFile := flatfile.NewOrderFile(filestore.New(cfg.OrdersFile()), tel)
	orders, err := orderFile.Load(ctx, func(bookID string) (decimal.Decimal, error) {
		b, err := bookRepo.Get(ctx, bookID)
		return b.Price, err
	})
	if err != nil {
		return err
	}
	orderRepo := memory.NewOrderRepository(orders, orderFile)

	paymentFile := flatfile.NewPaymentFile(filestore.New(cfg.PaymentsFile()), tel)
	payments, err := paymentFile.Load(ctx)
	if err != nil {
		return err
	}
	paymentRepo := memory.NewPaymentRepository(payments, paymentFile)

	users, err := flatfile.LoadUserDirectory(ctx, filestore.New(cfg.UsersFile()), tel)
	if err != nil {
		return err
	}

	log.Info("data_loaded",
		observability.F("data_dir", cfg.DataDir),
		observability.F("books", len(books)),
		observability.F("orders", len(orders)),
		observability.F("payments", len(payments)),
	)

	bus := outbox.NewBus(tel, outbox.WithMiddleware(workerpresentation.EventMiddleware(tel)))

	clk := clock.NewSystem()
	catalogService := appcatalog.NewService(bookRepo, id.NewUUIDGenerator(), bus, tel)
	ledger := apporder.NewLedger(orderRepo, catalogService, users, id.NewOrderGenerator(), clk, bus, tel)
	recorder := apppayment.NewRecorder(paymentRepo, ledger, id.NewPaymentGenerator(), clk, bus, tel)

	appcatalog.NewWorker(bus, appcatalog.NewLowStockUseCase(cfg.LowStockThreshold, tel), tel).Start()
	apporder.NewWorker(bus, tel).Start()
	bus.Start(ctx)

	router := chi.NewRouter()
	router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))
	router.Mount("/", httppresentation.NewHandler(catalogService, ledger, recorder, tel).Router())

	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http_server_start", observability.F("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("http_server_shutdown_error", observability.F("error", err))
	} else {
		log.Info("http_server_stopped")
	}
	if err := bus.Stop(shutdownCtx); err != nil {
		log.Warn("event_bus_shutdown_error", observability.F("error", err))
	}
	return nil
}
