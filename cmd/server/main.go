package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"portfolio-sim-go/internal/auth"
	"portfolio-sim-go/internal/config"
	"portfolio-sim-go/internal/dashboard"
	"portfolio-sim-go/internal/database"
	"portfolio-sim-go/internal/journal"
	"portfolio-sim-go/internal/logger"
	"portfolio-sim-go/internal/market"
	"portfolio-sim-go/internal/notify"
	"portfolio-sim-go/internal/simulator"
	"portfolio-sim-go/internal/stream"
)

func main() {
	// a missing .env file is fine
	_ = godotenv.Load()

	cfg, err := config.LoadConfig("./configs")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(cfg.Logger.Level, cfg.Logger.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("Server failed", zap.Error(err))
	}
	log.Info("Server has been shut down.")
}

func run(cfg config.Config, log *zap.Logger) error {
	db, err := database.NewDatabase(&cfg.Database)
	if err != nil {
		return err
	}
	log.Info("Database connection successful and schema migrated.", zap.String("dsn", cfg.Database.DSN))

	seed := cfg.Simulator.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	book, err := market.NewPriceBook(market.DefaultCatalog(), rand.New(rand.NewSource(seed)))
	if err != nil {
		return fmt.Errorf("failed to create price book: %w", err)
	}

	startingBonus := decimal.NewFromFloat(cfg.Account.StartingBonus)
	minWithdrawal := decimal.NewFromFloat(cfg.Account.MinWithdrawal)

	authSvc := auth.NewService(database.NewKVStore(db), log,
		auth.WithSessionTTL(cfg.Auth.SessionTTL),
		auth.WithBcryptCost(cfg.Auth.BcryptCost),
		auth.WithStartingBonus(startingBonus),
	)

	events := stream.NewBroadcaster(256)
	opts := []dashboard.Option{
		dashboard.WithPublisher(events),
		dashboard.WithMinWithdrawal(minWithdrawal),
	}
	if cfg.Journal.Enabled {
		j, err := journal.NewWALJournal(cfg.Journal.Dir)
		if err != nil {
			return err
		}
		defer j.Close()
		log.Info("Transaction journal enabled", zap.String("dir", cfg.Journal.Dir), zap.Uint64("index", j.CurrentIndex()))
		opts = append(opts, dashboard.WithJournal(j))
	}
	session := dashboard.NewSession(authSvc, book, notify.Fanout{notify.NewLogNotifier(log), events}, log, opts...)

	// restore the device session left by a previous run
	if authSvc.Authenticated() {
		if err := session.Open(); err != nil {
			log.Warn("Failed to restore session", zap.Error(err))
		}
	}

	sim := simulator.New(book, log)
	sim.AddRevaluer(session)
	sim.OnTick(func(quotes []market.Quote) {
		events.Publish(stream.Event{Type: stream.EventMarkets, Payload: quotes})
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Simulator.AutoStart {
		if err := sim.Start(ctx, cfg.Simulator.Interval); err != nil {
			return err
		}
	}

	initial := func() []stream.Event {
		out := []stream.Event{{Type: stream.EventMarkets, Payload: book.Quotes()}}
		if ev, ok := session.Snapshot(); ok {
			out = append(out, ev)
		}
		return out
	}
	wsHandler := stream.NewHandler(events, initial, originPatterns(cfg.Server.AllowedOrigins), log)

	api := NewAPIHandler(log, authSvc, session, sim, ctx, cfg.Simulator.Interval, minWithdrawal)
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           NewRouter(api, wsHandler, cfg.Server.AllowedOrigins, log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("Starting web server", zap.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("web server failed: %w", err)
		}
	case <-ctx.Done():
		log.Info("Shutdown signal received, gracefully shutting down...")
	}

	if sim.State() == simulator.Running {
		_ = sim.Stop()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down web server: %w", err)
	}
	return nil
}

// originPatterns converts CORS origins into the host patterns the WebSocket
// handshake checks. An empty result accepts same-origin requests only.
func originPatterns(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		if o == "*" {
			return []string{"*"}
		}
		out = append(out, strings.TrimPrefix(strings.TrimPrefix(o, "https://"), "http://"))
	}
	return out
}
