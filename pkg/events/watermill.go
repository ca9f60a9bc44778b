// Package events is the inventory event bus: Watermill over the PostgreSQL
// SQL transport, with an optional forwarder that turns the messages table
// into a transactional outbox.
//
// Subscribers in the same ConsumerGroup (<service>-consumer) share the load;
// each message reaches one worker instance. Handlers must be idempotent
// because a failed handler is retried and the message is redelivered after
// a Nack. Trace context travels in message metadata.
package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	watermillsql "github.com/ThreeDotsLabs/watermill-sql/v3/pkg/sql"
	"github.com/ThreeDotsLabs/watermill/components/forwarder"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/ghuser/retailstock/pkg/config"
	"github.com/ghuser/retailstock/pkg/logger"
)

const (
	maxRetries      = 3
	retryBaseDelay  = time.Second
	shutdownTimeout = 30 * time.Second
	errBuffer       = 100

	// outboxTopic carries forwarder envelopes until the forwarder daemon
	// republishes them on their real topic.
	outboxTopic = "_forwarder_queue"
)

var errNotForwarder = errors.New("events: bus was not created with a forwarder")

// EventBus publishes and consumes JSON domain events.
type EventBus struct {
	publisher    message.Publisher
	subscriber   *watermillsql.Subscriber
	fwd          *forwarder.Forwarder
	db           *sql.DB
	log          logger.Logger
	wlog         watermill.LoggerAdapter
	wg           sync.WaitGroup
	useForwarder bool
}

// NewEventBus opens its own pool on cfg.DatabaseURL and publishes straight
// to the target topics. The worker uses it to subscribe.
func NewEventBus(cfg *config.Config, log logger.Logger) (*EventBus, error) {
	return newEventBus(cfg, log, false)
}

// NewEventBusWithForwarder routes every publication through the outbox
// topic. Messages written inside a business transaction are delivered only
// after it commits, once StartForwarder is running.
func NewEventBusWithForwarder(cfg *config.Config, log logger.Logger) (*EventBus, error) {
	return newEventBus(cfg, log, true)
}

func publisherConfig(autoInit bool) watermillsql.PublisherConfig {
	return watermillsql.PublisherConfig{
		SchemaAdapter:        watermillsql.DefaultPostgreSQLSchema{},
		AutoInitializeSchema: autoInit,
	}
}

func subscriberConfig(group string) watermillsql.SubscriberConfig {
	return watermillsql.SubscriberConfig{
		SchemaAdapter:    watermillsql.DefaultPostgreSQLSchema{},
		OffsetsAdapter:   watermillsql.DefaultPostgreSQLOffsetsAdapter{},
		InitializeSchema: true,
		ConsumerGroup:    group,
	}
}

// wrap turns a plain SQL publisher into an outbox publisher when the bus
// runs in forwarder mode.
func (q *EventBus) wrap(pub message.Publisher) message.Publisher {
	if !q.useForwarder {
		return pub
	}
	return forwarder.NewPublisher(pub, forwarder.PublisherConfig{ForwarderTopic: outboxTopic})
}

func newEventBus(cfg *config.Config, log logger.Logger, useForwarder bool) (*EventBus, error) {
	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("events: open db: %w", err)
	}
	q := &EventBus{db: db, log: log, wlog: &slogAdapter{log: log}, useForwarder: useForwarder}

	pub, err := watermillsql.NewPublisher(db, publisherConfig(true), q.wlog)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("events: new publisher: %w", err)
	}
	q.publisher = q.wrap(pub)

	q.subscriber, err = watermillsql.NewSubscriber(db, subscriberConfig(cfg.ServiceName+"-consumer"), q.wlog)
	if err != nil {
		_ = pub.Close()
		_ = db.Close()
		return nil, fmt.Errorf("events: new subscriber: %w", err)
	}
	return q, nil
}

// StartForwarder runs the outbox daemon until ctx ends. It returns once the
// forwarder router is running. Call it once, on a forwarder bus only.
func (q *EventBus) StartForwarder(ctx context.Context) error {
	if !q.useForwarder {
		return errNotForwarder
	}
	if q.fwd != nil {
		return errors.New("events: forwarder already started")
	}

	outbox, err := watermillsql.NewSubscriber(q.db, subscriberConfig("forwarder-consumer"), q.wlog)
	if err != nil {
		return fmt.Errorf("events: new outbox subscriber: %w", err)
	}
	target, err := watermillsql.NewPublisher(q.db, publisherConfig(true), q.wlog)
	if err != nil {
		_ = outbox.Close()
		return fmt.Errorf("events: new outbox target publisher: %w", err)
	}
	fwd, err := forwarder.NewForwarder(outbox, target, q.wlog, forwarder.Config{ForwarderTopic: outboxTopic})
	if err != nil {
		_ = target.Close()
		_ = outbox.Close()
		return fmt.Errorf("events: create forwarder: %w", err)
	}
	q.fwd = fwd

	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		q.log.InfoContext(ctx, "events: outbox forwarder started")
		if err := fwd.Run(ctx); err != nil {
			q.log.ErrorContext(ctx, "events: outbox forwarder stopped", "error", err)
			return
		}
		q.log.InfoContext(ctx, "events: outbox forwarder stopped")
	}()

	select {
	case <-fwd.Running():
		return nil
	case <-ctx.Done():
		return fmt.Errorf("events: waiting for forwarder: %w", ctx.Err())
	}
}

// NewTxPublisher returns a publisher whose writes belong to tx. The schema
// already exists by then, so it is not initialized again.
func (q *EventBus) NewTxPublisher(tx *sql.Tx) (message.Publisher, error) {
	pub, err := watermillsql.NewPublisher(tx, publisherConfig(false), q.wlog)
	if err != nil {
		return nil, fmt.Errorf("events: new tx publisher: %w", err)
	}
	return q.wrap(pub), nil
}

// NewJSONMessage marshals payload. The message UUID is the deduplication
// key for consumers.
func NewJSONMessage(payload any) (*message.Message, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("events: marshal payload: %w", err)
	}
	msg := message.NewMessage(uuid.NewString(), b)
	msg.Metadata.Set("content_type", "application/json")
	return msg, nil
}

func injectTrace(ctx context.Context, msgs ...*message.Message) {
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	for _, msg := range msgs {
		for k, v := range carrier {
			msg.Metadata.Set(k, v)
		}
	}
}

func extractTrace(ctx context.Context, msg *message.Message) context.Context {
	return otel.GetTextMapPropagator().Extract(ctx, propagation.MapCarrier(msg.Metadata))
}

// PublishJSON publishes payload outside any transaction. Used for the
// post-commit low-stock signal.
func (q *EventBus) PublishJSON(ctx context.Context, topic string, payload any) error {
	msg, err := NewJSONMessage(payload)
	if err != nil {
		return err
	}
	return q.Publish(ctx, topic, msg)
}

// TxRecorder writes events into the transaction that produced them.
type TxRecorder struct {
	pub message.Publisher
}

// NewTxRecorder binds a TxRecorder to tx.
func (q *EventBus) NewTxRecorder(tx *sql.Tx) (*TxRecorder, error) {
	pub, err := q.NewTxPublisher(tx)
	if err != nil {
		return nil, err
	}
	return &TxRecorder{pub: pub}, nil
}

// Record publishes event on topic inside the bound transaction.
func (r *TxRecorder) Record(ctx context.Context, topic string, event any) error {
	msg, err := NewJSONMessage(event)
	if err != nil {
		return err
	}
	injectTrace(ctx, msg)
	if err := r.pub.Publish(topic, msg); err != nil { //nolint:contextcheck
		return fmt.Errorf("events: record %s: %w", topic, err)
	}
	return nil
}

// Publish sends msgs to topic with the trace of ctx attached.
func (q *EventBus) Publish(ctx context.Context, topic string, msgs ...*message.Message) error {
	injectTrace(ctx, msgs...)
	if err := q.publisher.Publish(topic, msgs...); err != nil { //nolint:contextcheck
		return fmt.Errorf("events: publish to %s: %w", topic, err)
	}
	return nil
}

// Subscribe consumes topic in the background. A nil handler result acks the
// message. Errors are retried with backoff (1s, 2s); after the last attempt
// the message is nacked and the error is sent on the returned channel,
// which callers must drain:
//
//	errCh, err := bus.Subscribe(ctx, topic, handler)
//	go func() { for err := range errCh { log.ErrorContext(ctx, "subscriber error", "error", err) } }()
func (q *EventBus) Subscribe(ctx context.Context, topic string, handler func(context.Context, *message.Message) error) (<-chan error, error) {
	ch, err := q.subscriber.Subscribe(ctx, topic)
	if err != nil {
		return nil, fmt.Errorf("events: subscribe to %s: %w", topic, err)
	}

	errCh := make(chan error, errBuffer)
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		defer close(errCh)

		for msg := range ch {
			msgCtx := extractTrace(ctx, msg)
			err := retryWithBackoff(msgCtx, msg, handler, maxRetries, retryBaseDelay, q.log)
			if err == nil {
				msg.Ack()
				continue
			}
			msg.Nack()
			select {
			case errCh <- err:
			default:
				q.log.ErrorContext(msgCtx, "events: error channel full, dropping error", "error", err, "topic", topic)
			}
		}
	}()
	return errCh, nil
}

// retryWithBackoff runs handler at most attempts times, doubling the delay
// after each failure. It gives up early when ctx ends.
func retryWithBackoff(
	ctx context.Context,
	msg *message.Message,
	handler func(context.Context, *message.Message) error,
	attempts int,
	delay time.Duration,
	log logger.Logger,
) error {
	var err error
	for attempt := 1; ; attempt++ {
		if err = handler(ctx, msg); err == nil {
			return nil
		}
		if attempt == attempts {
			return fmt.Errorf("events: handler failed after %d attempts: %w", attempts, err)
		}
		log.WarnContext(ctx, "events: handler failed, retrying",
			"message_id", msg.UUID,
			"attempt", attempt,
			"next_delay", delay,
			"error", err,
		)
		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
		delay *= 2
	}
}

// Ping reports whether the bus database is reachable.
func (q *EventBus) Ping(ctx context.Context) error {
	if err := q.db.PingContext(ctx); err != nil {
		return fmt.Errorf("events: ping db: %w", err)
	}
	return nil
}

// Close stops consuming, waits up to shutdownTimeout for running handlers
// and then closes the publisher and the pool.
func (q *EventBus) Close() error {
	if err := q.subscriber.Close(); err != nil {
		return fmt.Errorf("events: close subscriber: %w", err)
	}
	if q.fwd != nil {
		if err := q.fwd.Close(); err != nil {
			return fmt.Errorf("events: close forwarder: %w", err)
		}
	}

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(shutdownTimeout):
		q.log.Error("events: timed out waiting for in-flight handlers")
	}

	if err := q.publisher.Close(); err != nil {
		return fmt.Errorf("events: close publisher: %w", err)
	}
	return q.db.Close()
}

// slogAdapter lets Watermill log through logger.Logger.
type slogAdapter struct{ log logger.Logger }

func (a *slogAdapter) Error(msg string, err error, fields watermill.LogFields) {
	a.log.Error(msg, append(fieldsToArgs(fields), "error", err)...)
}

func (a *slogAdapter) Info(msg string, fields watermill.LogFields) {
	a.log.Info(msg, fieldsToArgs(fields)...)
}

func (a *slogAdapter) Debug(msg string, fields watermill.LogFields) {
	a.log.Debug(msg, fieldsToArgs(fields)...)
}

func (a *slogAdapter) Trace(msg string, fields watermill.LogFields) {
	a.log.Debug(msg, fieldsToArgs(fields)...)
}

func (a *slogAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &slogAdapter{log: a.log.With(fieldsToArgs(fields)...)}
}

func fieldsToArgs(fields watermill.LogFields) []any {
	args := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	return args
}
