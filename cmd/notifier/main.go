package main

import (
	"context"
	"database/sql"
	infra_metrics "github.com/kotche/memo/infrastructure/metrics"
	"github.com/kotche/memo/infrastructure/tracing"
	"github.com/kotche/memo/internal/app/notifier"
	"github.com/kotche/memo/internal/config"
	"github.com/kotche/memo/internal/metrics"
	reminders_repo "github.com/kotche/memo/internal/repository/reminders"
	"github.com/kotche/memo/internal/service/kafka"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"gopkg.in/telebot.v3"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	location, err := time.LoadLocation(cfg.TimeZone)
	if err != nil {
		log.Fatalf("failed to load location: %v", err)
	}
	time.Local = location

	metrics.Init()
	infra_metrics.StartMetricsServer(cfg.MetricsConfig.NotifierAddr)

	bot, err := telebot.NewBot(telebot.Settings{
		Token:  cfg.TelegramConfig.TokenNotifyBot,
		Poller: &telebot.LongPoller{Timeout: 10 * time.Second},
	})

	if err != nil {
		log.Fatal(err)
	}

	db, err := sql.Open("postgres", cfg.PostgresConfig.PostgresURL())
	if err != nil {
		log.Fatalln(err)
	}
	defer db.Close()

	cleanup, err := tracing.InitTracing("memo-notifier", cfg.TracingConfig.Endpoint)
	if err != nil {
		log.Fatal(err)
	}
	defer cleanup()

	kafkaServ, err := kafka.New(cfg.KafkaConfig)
	if err != nil {
		log.Fatalf("failed to initialize kafka: %v", err)
	}
	defer kafkaServ.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	notifierImpl := notifier.New(bot, reminders_repo.NewDefaultRepository(db), kafkaServ, cfg.NotifierConfig.CheckInterval)
	notifierImpl.Start(ctx)
}
