package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mcmasterful/bookstore/internal/messaging"
	"github.com/mcmasterful/bookstore/internal/warehouse"
)

const retryInterval = 5 * time.Second

func main() {
	_ = godotenv.Load()
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})

	cfg := LoadConfig()
	log.Info().Msg("starting warehouse service")

	repo := openRepository(cfg)
	broker := openBroker(cfg)

	svc := warehouse.NewService(repo, broker)
	must(svc.RegisterConsumers())

	if cfg.SeedOnStart {
		must(svc.Seed(context.Background()))
		log.Info().Msg("seeded sample inventory")
	}

	log.Info().Msg("warehouse service ready")
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	<-ch
	log.Warn().Msg("shutting down")
}

func openRepository(cfg Config) warehouse.Repository {
	if cfg.MongoURL == "" {
		log.Warn().Msg("no mongo url configured, using in-memory store")
		return warehouse.NewMemoryRepository()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURL))
	must(err)
	must(client.Ping(ctx, nil))
	log.Info().Str("db", cfg.MongoDB).Msg("connected to mongodb")
	return warehouse.NewMongoRepository(client.Database(cfg.MongoDB))
}

func openBroker(cfg Config) messaging.Broker {
	if cfg.RabbitURL == "" {
		log.Warn().Msg("no rabbitmq url configured, using in-process broker")
		return messaging.NewMemoryBroker()
	}
	rb := messaging.NewRabbit(messaging.RabbitConfig{
		URL:             cfg.RabbitURL,
		Service:         cfg.ServiceName,
		DeadLetterQueue: cfg.DeadLetterQueue,
	})
	for {
		if err := rb.Connect(); err != nil {
			log.Error().Err(err).Dur("retryIn", retryInterval).Msg("rabbitmq connect failed")
			time.Sleep(retryInterval)
			continue
		}
		return rb
	}
}

func must(err error) {
	if err != nil {
		log.Fatal().Err(err).Msg("fatal")
	}
}
