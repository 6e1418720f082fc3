package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/AxmedStark/PekSeries-Telegram-Bot/internal/config"
	"github.com/AxmedStark/PekSeries-Telegram-Bot/internal/domain"
)

const EventEpisodeReleased = "episode.released"

// RabbitMQ fans out release events to a durable direct exchange.
type RabbitMQ struct {
	conn       *amqp.Connection
	channel    *amqp.Channel
	exchange   string
	routingKey string
	logger     *slog.Logger
}

func NewRabbitMQ(cfg config.RabbitMQConfig, logger *slog.Logger) (*RabbitMQ, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := declareTopology(ch, cfg); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	logger = logger.With("component", "publisher")
	logger.Info("connected to rabbitmq",
		"exchange", cfg.Exchange,
		"queue", cfg.QueueName,
		"routing_key", cfg.RoutingKey,
	)

	return &RabbitMQ{
		conn:       conn,
		channel:    ch,
		exchange:   cfg.Exchange,
		routingKey: cfg.RoutingKey,
		logger:     logger,
	}, nil
}

// declareTopology declares the exchange and, when a queue name is set, a
// durable queue bound to it.
func declareTopology(ch *amqp.Channel, cfg config.RabbitMQConfig) error {
	if err := ch.ExchangeDeclare(cfg.Exchange, amqp.ExchangeDirect, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	if cfg.QueueName == "" {
		return nil
	}

	q, err := ch.QueueDeclare(cfg.QueueName, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	if err := ch.QueueBind(q.Name, cfg.RoutingKey, cfg.Exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}

	return nil
}

// EpisodeMessage is the JSON body of an episode.released event.
type EpisodeMessage struct {
	Event     string         `json:"event"`
	ShowID    int64          `json:"show_id"`
	ShowName  string         `json:"show_name"`
	Episode   domain.Episode `json:"episode"`
	Notified  int            `json:"notified"`
	Timestamp time.Time      `json:"timestamp"`
}

func newEpisodeMessage(release *domain.Release, now time.Time) EpisodeMessage {
	return EpisodeMessage{
		Event:     EventEpisodeReleased,
		ShowID:    release.ShowID,
		ShowName:  release.ShowName,
		Episode:   release.Episode,
		Notified:  release.Notified,
		Timestamp: now.UTC(),
	}
}

func (r *RabbitMQ) Publish(ctx context.Context, release *domain.Release) error {
	now := time.Now()

	body, err := json.Marshal(newEpisodeMessage(release, now))
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	err = r.channel.PublishWithContext(
		ctx,
		r.exchange,
		r.routingKey,
		false,
		false,
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			Type:         EventEpisodeReleased,
			MessageId:    fmt.Sprintf("%d:%d", release.ShowID, release.Episode.ID),
			Body:         body,
			Timestamp:    now,
		},
	)
	if err != nil {
		return fmt.Errorf("publish message: %w", err)
	}

	r.logger.Debug("published release",
		"show_id", release.ShowID,
		"episode_id", release.Episode.ID,
	)

	return nil
}

func (r *RabbitMQ) Close() error {
	if r.channel != nil {
		r.channel.Close()
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}
