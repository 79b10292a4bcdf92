package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/streadway/amqp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Run dials the broker and consumes with cfg.Concurrency channels until ctx
// is cancelled or one of the consumers fails.
func (w *Worker) Run(ctx context.Context) error {
	if w.cfg.URL == "" {
		return errors.New("amqp url is required")
	}

	conn, err := amqp.Dial(w.cfg.URL)
	if err != nil {
		return fmt.Errorf("dialling rabbitmq: %w", err)
	}
	defer conn.Close()

	w.logger.Info("worker started",
		zap.String("queue", w.cfg.Queue),
		zap.String("exchange", w.cfg.Exchange),
		zap.Int("concurrency", w.cfg.Concurrency),
	)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < w.cfg.Concurrency; i++ {
		tag := fmt.Sprintf("resume-matcher-%d-%s", i, uuid.NewString())
		g.Go(func() error {
			return w.consume(gctx, conn, tag)
		})
	}

	err = g.Wait()
	w.logger.Info("worker stopped", zap.Error(err))
	return err
}

func (w *Worker) consume(ctx context.Context, conn *amqp.Connection, tag string) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("opening channel: %w", err)
	}
	defer ch.Close()

	if err := declare(ch, w.cfg.Queue, w.cfg.Exchange); err != nil {
		return err
	}

	// One unacked message per consumer.
	if err := ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("setting qos: %w", err)
	}

	deliveries, err := ch.Consume(
		w.cfg.Queue,
		tag,
		false, // manual ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("consuming from %s: %w", w.cfg.Queue, err)
	}

	pub := &channelPublisher{ch: ch, exchange: w.cfg.Exchange}
	log := w.logger.With(zap.String("consumer", tag))
	log.Debug("consumer ready")

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("delivery channel closed by broker")
			}
			w.process(ctx, d, pub)
		}
	}
}

func declare(ch *amqp.Channel, queue, exchange string) error {
	if _, err := ch.QueueDeclare(
		queue,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,
	); err != nil {
		return fmt.Errorf("declaring queue %s: %w", queue, err)
	}

	if err := ch.ExchangeDeclare(
		exchange,
		amqp.ExchangeTopic,
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		return fmt.Errorf("declaring exchange %s: %w", exchange, err)
	}

	return nil
}

type channelPublisher struct {
	ch       *amqp.Channel
	exchange string
}

func (p *channelPublisher) Publish(_ context.Context, routingKey string, body []byte) error {
	return p.ch.Publish(p.exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
}
