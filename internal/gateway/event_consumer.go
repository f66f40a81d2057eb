package gateway

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/castlelight/gambit/internal/events"
)

// ConsumerConfig holds NATS settings for the room feed.
type ConsumerConfig struct {
	URL           string
	SubjectFilter string
	MaxReconnects int
	ReconnectWait time.Duration
}

// DefaultConsumerConfig subscribes to every game's subject.
func DefaultConsumerConfig() ConsumerConfig {
	return ConsumerConfig{
		URL:           nats.DefaultURL,
		SubjectFilter: "game.events.>",
		MaxReconnects: -1,
		ReconnectWait: 2 * time.Second,
	}
}

// EventConsumer subscribes to the game event subjects and feeds every
// envelope into the room broadcast. Core NATS with no durable state: a
// gateway that was down missed those events, and reconnecting clients
// re-fetch the game snapshot instead of replaying.
type EventConsumer struct {
	manager *ConnectionManager
	nc      *nats.Conn
	sub     *nats.Subscription
	config  ConsumerConfig
}

// NewEventConsumer connects to the bus and starts the subscription.
func NewEventConsumer(manager *ConnectionManager, cfg ConsumerConfig) (*EventConsumer, error) {
	opts := []nats.Option{
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	ec := &EventConsumer{manager: manager, nc: nc, config: cfg}

	sub, err := nc.Subscribe(cfg.SubjectFilter, ec.handleMessage)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("subscribe %s: %w", cfg.SubjectFilter, err)
	}
	ec.sub = sub

	log.Info().Str("subject", cfg.SubjectFilter).Msg("game event consumer started")
	return ec, nil
}

func (ec *EventConsumer) handleMessage(msg *nats.Msg) {
	var event events.GameEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		log.Error().Err(err).Str("subject", msg.Subject).Msg("failed to decode game event")
		return
	}
	ec.manager.Broadcast(&event)
}

// Close unsubscribes and drains the connection.
func (ec *EventConsumer) Close() {
	if ec.sub != nil {
		if err := ec.sub.Unsubscribe(); err != nil {
			log.Error().Err(err).Msg("failed to unsubscribe game events")
		}
	}
	if err := ec.nc.Drain(); err != nil {
		log.Error().Err(err).Msg("failed to drain NATS connection")
	}
}
