package main

import (
	"database/sql"
	"errors"
	"fmt"
	"github.com/kotche/memo/infrastructure/metrics"
	"github.com/kotche/memo/infrastructure/tracing"
	"github.com/kotche/memo/internal/app/writer"
	"github.com/kotche/memo/internal/config"
	memos_repo "github.com/kotche/memo/internal/repository/memos"
	reminders_repo "github.com/kotche/memo/internal/repository/reminders"
	users_repo "github.com/kotche/memo/internal/repository/users"
	"github.com/kotche/memo/internal/service/identity"
	memos_serv "github.com/kotche/memo/internal/service/memos"
	"github.com/kotche/memo/internal/service/scheduler"
	"log"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"

	"gopkg.in/telebot.v3"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	setTimeZone(cfg.TimeZone)

	metrics.Init()
	metrics.StartMetricsServer(cfg.MetricsConfig.WriterAddr)

	bot, err := telebot.NewBot(telebot.Settings{
		Token:  cfg.TelegramConfig.TokenWriteBot,
		Poller: &telebot.LongPoller{Timeout: 10 * time.Second},
	})

	if err != nil {
		log.Fatal(err)
	}

	connStr := cfg.PostgresConfig.PostgresURL()
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		log.Fatalln(err)
	}
	defer db.Close()

	if err = runMigrations(connStr); err != nil {
		log.Fatalln("migration error:", err)
	}

	cleanup, err := tracing.InitTracing("memo-writer", cfg.TracingConfig.Endpoint)
	if err != nil {
		log.Fatal(err)
	}
	defer cleanup()

	schedulerServ := scheduler.NewDefaultScheduler(reminders_repo.NewDefaultRepository(db))
	coordinator := memos_serv.NewDefaultCoordinator(
		memos_repo.NewDefaultRepository(db),
		schedulerServ,
		memos_serv.Options{
			OperationTimeout: cfg.MemoConfig.OperationTimeout,
			ReminderTimeout:  cfg.MemoConfig.ReminderTimeout,
			AllowEmptyTitle:  cfg.MemoConfig.AllowEmptyTitle,
		},
	)
	defer coordinator.Wait()

	provider := identity.NewDefaultProvider(users_repo.NewDefaultRepository(db))

	writerImpl := writer.New(bot, provider, coordinator, schedulerServ)
	writerImpl.Start()
}

func setTimeZone(name string) {
	location, err := time.LoadLocation(name)
	if err != nil {
		log.Fatalf("failed to load location: %v", err)
	}
	time.Local = location
	log.Printf("default time zone set to %s", name)
}

func runMigrations(dbURL string) error {
	m, err := migrate.New(
		"file://migrations",
		dbURL,
	)
	if err != nil {
		return fmt.Errorf("failed to init migrations: %w", err)
	}

	if err = m.Up(); !errors.Is(err, migrate.ErrNoChange) && err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	return nil
}
