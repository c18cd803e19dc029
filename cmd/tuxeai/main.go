// Command tuxeai runs the restaurant agent platform.
//
//	tuxeai [-env file] migrate          create the schema
//	tuxeai [-env file] serve            HTTP API plus background workers
//	tuxeai [-env file] worker           background workers only
//	tuxeai [-env file] replay -event N  re-queue a failed event
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	tuxeai "github.com/cotah/tuxeai-app"
	"github.com/cotah/tuxeai-app/agent"
	"github.com/cotah/tuxeai-app/agent/reengagement"
	"github.com/cotah/tuxeai-app/agent/reservation"
	"github.com/cotah/tuxeai-app/agent/reviews"
	"github.com/cotah/tuxeai-app/agent/support"
	"github.com/cotah/tuxeai-app/completion"
	"github.com/cotah/tuxeai-app/internal/httpapi"
	"github.com/cotah/tuxeai-app/pkg/config"
	"github.com/cotah/tuxeai-app/pkg/logger"
	"github.com/cotah/tuxeai-app/storage/sqlstore"
)

type dbConfig struct {
	Driver          string        `envconfig:"DRIVER" default:"mysql"`
	DSN             string        `envconfig:"DSN" required:"true"`
	MaxOpenConns    int           `envconfig:"MAX_OPEN_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"CONN_MAX_LIFETIME" default:"5m"`
}

type httpConfig struct {
	Addr            string        `envconfig:"ADDR" default:":8080"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
}

type processorConfig struct {
	IdleInterval       time.Duration `envconfig:"IDLE_INTERVAL" default:"5s"`
	StuckCheckInterval time.Duration `envconfig:"STUCK_CHECK_INTERVAL" default:"1m"`
	StuckTimeout       time.Duration `envconfig:"STUCK_TIMEOUT" default:"10m"`
	ReminderInterval   time.Duration `envconfig:"REMINDER_INTERVAL" default:"1m"`
	ReminderLead       time.Duration `envconfig:"REMINDER_LEAD" default:"24h"`
}

// kafkaConfig leaves notifications off while Brokers is empty.
type kafkaConfig struct {
	Brokers string `envconfig:"BROKERS"`
	Topic   string `envconfig:"TOPIC" default:"tuxeai-events"`
}

func main() {
	logCfg := config.MustNew[logger.Config]("LOG")
	log, err := logger.New(*logCfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, log, flag.Args()); err != nil {
		log.Fatal("Command failed", zap.Error(err))
	}
}

func run(ctx context.Context, log *zap.Logger, args []string) error {
	cmd := "serve"
	if len(args) > 0 {
		cmd, args = args[0], args[1:]
	}

	dbCfg := config.MustNew[dbConfig]("DB")
	store, db, err := openStore(ctx, *dbCfg, log)
	if err != nil {
		return err
	}
	defer db.Close()

	switch cmd {
	case "migrate":
		if err := store.EnsureTables(ctx); err != nil {
			return err
		}
		log.Info("Schema is up to date", zap.String("dialect", dbCfg.Driver))
		return nil

	case "replay":
		fs := flag.NewFlagSet("replay", flag.ContinueOnError)
		eventID := fs.Int64("event", 0, "id of the failed event to re-queue")
		if err := fs.Parse(args); err != nil {
			return err
		}
		if *eventID <= 0 {
			return errors.New("replay: -event is required")
		}
		id, err := tuxeai.NewReplayService(store, log, nil).Replay(ctx, *eventID)
		if err != nil {
			return err
		}
		log.Info("Event re-queued", zap.Int64("event_id", *eventID), zap.Int64("new_event_id", id))
		return nil

	case "worker", "serve":
		return serve(ctx, log, store, cmd == "serve")
	}
	return fmt.Errorf("unknown command %q", cmd)
}

func openStore(ctx context.Context, cfg dbConfig, log *zap.Logger) (*sqlstore.SQLStore, *sql.DB, error) {
	dialect, err := sqlstore.ParseDialect(cfg.Driver)
	if err != nil {
		return nil, nil, err
	}
	dsn, err := dialect.DSN(cfg.DSN)
	if err != nil {
		return nil, nil, err
	}
	db, err := sql.Open(dialect.DriverName(), dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return sqlstore.NewSQLStore(db, dialect, log), db, nil
}

func serve(ctx context.Context, log *zap.Logger, store *sqlstore.SQLStore, withHTTP bool) error {
	llmCfg := config.MustNew[completion.Config]("LLM")
	completer, err := completion.NewOpenAICompleter(*llmCfg)
	if err != nil {
		return err
	}

	registry := agent.NewRegistry(agent.Deps{
		Store:      store,
		Completer:  completer,
		Transactor: store.Transactor(),
		Logger:     log,
	})
	registry.Register(reservation.Key, reservation.New)
	registry.Register(support.Key, support.New)
	registry.Register(reviews.Key, reviews.New)
	registry.Register(reengagement.Key, reengagement.New)

	publisher, err := newPublisher(log)
	if err != nil {
		return err
	}
	defer publisher.Close()

	carrier, err := tuxeai.NewCarrier(store, registry,
		tuxeai.WithLogger(log),
		tuxeai.WithPublisher(publisher),
		tuxeai.WithMetrics(tuxeai.NewOpenTelemetryMetricsCollector()),
		tuxeai.WithTransactor(store.Transactor()),
	)
	if err != nil {
		return err
	}

	procCfg := config.MustNew[processorConfig]("PROCESSOR")
	dispatcher := tuxeai.NewDispatcher(log, carrier.Workers(tuxeai.WorkerSchedule{
		IdleInterval:       procCfg.IdleInterval,
		StuckCheckInterval: procCfg.StuckCheckInterval,
		StuckTimeout:       procCfg.StuckTimeout,
		ReminderInterval:   procCfg.ReminderInterval,
		ReminderLead:       procCfg.ReminderLead,
	})...)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		dispatcher.Run(ctx)
	}()

	if withHTTP {
		httpCfg := config.MustNew[httpConfig]("HTTP")
		srv := &http.Server{
			Addr:              httpCfg.Addr,
			Handler:           httpapi.NewServer(store, store.Transactor(), registry.Keys(), log),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			log.Info("HTTP server listening", zap.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("HTTP server failed", zap.Error(err))
				dispatcher.Stop()
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), httpCfg.ShutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Warn("HTTP shutdown error", zap.Error(err))
			}
		}()
	}

	wg.Wait()
	log.Info("Shutdown complete")
	return nil
}

func newPublisher(log *zap.Logger) (tuxeai.Publisher, error) {
	cfg := config.MustNew[kafkaConfig]("KAFKA")
	if strings.TrimSpace(cfg.Brokers) == "" {
		log.Info("Kafka brokers not configured, event notifications disabled")
		return tuxeai.NewNopPublisher(), nil
	}
	return tuxeai.NewKafkaPublisher(log,
		tuxeai.WithKafkaProducerProps(kafka.ConfigMap{"bootstrap.servers": cfg.Brokers}),
		tuxeai.WithKafkaTopic(cfg.Topic),
	)
}
