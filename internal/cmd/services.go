package main

import (
	"database/sql"
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/castlelight/gambit/internal/api"
	"github.com/castlelight/gambit/internal/events"
	"github.com/castlelight/gambit/internal/game"
	"github.com/castlelight/gambit/internal/gateway"
	"github.com/castlelight/gambit/internal/matchmaking"
	"github.com/castlelight/gambit/internal/rules"
	"github.com/castlelight/gambit/internal/stats"
)

// Services is the wired dependency chain:
// oracle/sink/recorder → registry → queue/mailbox/sweeper → handlers.
type Services struct {
	Registry *game.Registry
	Queue    *matchmaking.Queue
	Mailbox  *matchmaking.Mailbox
	Sweeper  *game.Sweeper
	Manager  *gateway.ConnectionManager
	Gateway  *gateway.Handler
	API      *api.API

	publisher *events.NATSPublisher
	consumer  *gateway.EventConsumer
}

func setupServices(cfg *Config, database *sql.DB, engine rules.Engine) (*Services, error) {
	clk := clockwork.NewRealClock()

	manager := gateway.NewConnectionManager(gateway.DefaultConnectionConfig())

	// With a NATS URL configured, events flow session → bus → consumer →
	// rooms so multiple gateway processes see them. Without one, they go
	// straight to the local rooms.
	var (
		sink      events.Sink
		publisher *events.NATSPublisher
		consumer  *gateway.EventConsumer
	)
	if cfg.NATS.URL != "" {
		natsCfg := events.DefaultNATSConfig()
		natsCfg.URL = cfg.NATS.URL

		var err error
		publisher, err = events.NewNATSPublisher(natsCfg)
		if err != nil {
			return nil, fmt.Errorf("setup NATS publisher: %w", err)
		}

		consumerCfg := gateway.DefaultConsumerConfig()
		consumerCfg.URL = cfg.NATS.URL
		consumer, err = gateway.NewEventConsumer(manager, consumerCfg)
		if err != nil {
			publisher.Close()
			return nil, fmt.Errorf("setup NATS consumer: %w", err)
		}
		sink = publisher
	} else {
		log.Info().Msg("no NATS URL configured; broadcasting events in-process")
		sink = gateway.NewLocalSink(manager)
	}

	recorder := stats.NewRepository(database)
	registry := game.NewRegistry(engine, sink, recorder, cfg.InitialTime(), clk)
	mailbox := matchmaking.NewMailbox()
	queue := matchmaking.NewQueue(registry, mailbox, clk)
	sweeper := game.NewSweeper(registry, cfg.SweepInterval(), clk)

	return &Services{
		Registry:  registry,
		Queue:     queue,
		Mailbox:   mailbox,
		Sweeper:   sweeper,
		Manager:   manager,
		Gateway:   gateway.NewHandler(manager, registry),
		API:       api.New(queue, mailbox, registry),
		publisher: publisher,
		consumer:  consumer,
	}, nil
}

// Close tears down bus connections.
func (s *Services) Close() {
	if s.consumer != nil {
		s.consumer.Close()
	}
	if s.publisher != nil {
		s.publisher.Close()
	}
}
