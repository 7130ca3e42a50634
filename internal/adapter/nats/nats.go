// Package nats implements the message queue port using NATS JetStream: the
// cross-instance relay for the Event Bus (§6 expansion). Every runtime
// instance subscribes to messagequeue.SubjectSessionEventWildcard and
// re-broadcasts what it receives to any local websocket connections it
// holds for that session, so a client attached to instance B still sees
// events emitted by a controller running on instance A.
package nats

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/Strob0t/CodeForge/internal/logger"
	"github.com/Strob0t/CodeForge/internal/port/messagequeue"
)

const (
	streamName       = "SESSION_EVENTS"
	maxRetries       = 3
	headerRetryCount = "X-Retry-Count"
	headerRequestID  = "X-Request-ID"
)

// Queue implements messagequeue.Queue using NATS JetStream.
type Queue struct {
	nc *nats.Conn
	js jetstream.JetStream
}

// Connect establishes a connection to NATS and ensures the session-event
// relay stream exists.
func Connect(ctx context.Context, url string) (*Queue, error) {
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream init: %w", err)
	}

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     streamName,
		Subjects: []string{"sessions.>"},
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream stream create: %w", err)
	}

	slog.Info("nats connected", "url", url, "stream", streamName)
	return &Queue{nc: nc, js: js}, nil
}

// Publish sends a message to the given subject, stamping the request ID
// carried on ctx (if any) into a header so a remote Subscribe handler can
// recover it for its own logging.
func (q *Queue) Publish(ctx context.Context, subject string, data []byte) error {
	msg := &nats.Msg{Subject: subject, Data: data, Header: nats.Header{}}
	if reqID := logger.RequestID(ctx); reqID != "" {
		msg.Header.Set(headerRequestID, reqID)
	}
	if _, err := q.js.PublishMsg(ctx, msg); err != nil {
		return fmt.Errorf("nats publish %s: %w", subject, err)
	}
	return nil
}

// Subscribe registers a handler for messages on the given subject.
// Messages that fail schema validation, or whose handler fails
// maxRetries times, are routed to "<subject>.dlq" rather than redelivered
// forever.
func (q *Queue) Subscribe(ctx context.Context, subject string, handler messagequeue.Handler) (func(), error) {
	consumer, err := q.js.CreateOrUpdateConsumer(ctx, streamName, jetstream.ConsumerConfig{
		FilterSubject: subject,
		AckPolicy:     jetstream.AckExplicitPolicy,
	})
	if err != nil {
		return nil, fmt.Errorf("nats consumer create: %w", err)
	}

	cons, err := consumer.Consume(func(msg jetstream.Msg) {
		if err := messagequeue.Validate(msg.Subject(), msg.Data()); err != nil {
			slog.Error("message failed validation, routing to dlq", "subject", msg.Subject(), "error", err)
			q.moveToDLQ(context.Background(), msg)
			return
		}

		handlerCtx := context.Background()
		if reqID := msg.Headers().Get(headerRequestID); reqID != "" {
			handlerCtx = logger.WithRequestID(handlerCtx, reqID)
		}

		if err := handler(handlerCtx, msg.Subject(), msg.Data()); err != nil {
			slog.Error("message handler failed", "subject", msg.Subject(), "error", err)
			attempts := retryCount(msg.Headers())
			if md, mdErr := msg.Metadata(); mdErr == nil && int(md.NumDelivered) > attempts {
				attempts = int(md.NumDelivered)
			}
			if attempts >= maxRetries {
				q.moveToDLQ(handlerCtx, msg)
				return
			}
			if nakErr := msg.Nak(); nakErr != nil {
				slog.Error("nats nak failed", "error", nakErr)
			}
			return
		}
		if ackErr := msg.Ack(); ackErr != nil {
			slog.Error("nats ack failed", "error", ackErr)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("nats consume: %w", err)
	}

	return cons.Stop, nil
}

// moveToDLQ republishes msg's data under "<subject>.dlq" and acks the
// original so it is not redelivered.
func (q *Queue) moveToDLQ(ctx context.Context, msg jetstream.Msg) {
	dlqSubject := msg.Subject() + ".dlq"
	if _, err := q.js.Publish(ctx, dlqSubject, msg.Data()); err != nil {
		slog.Error("nats dlq publish failed", "subject", dlqSubject, "error", err)
	}
	if err := msg.Ack(); err != nil {
		slog.Error("nats ack after dlq failed", "error", err)
	}
}

// retryCount reads an explicit X-Retry-Count header, defaulting to 0 when
// absent or unparsable. Subscribe compares the larger of it and JetStream's
// own delivery count against maxRetries.
func retryCount(h nats.Header) int {
	v := h.Get(headerRetryCount)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

// Drain gracefully drains the connection: pending outbound messages flush
// and in-flight subscriptions finish before the connection closes.
func (q *Queue) Drain() error {
	if err := q.nc.Drain(); err != nil {
		return fmt.Errorf("nats drain: %w", err)
	}
	return nil
}

// Close shuts down the NATS connection immediately.
func (q *Queue) Close() error {
	q.nc.Close()
	return nil
}

// IsConnected reports whether the underlying connection is currently
// connected.
func (q *Queue) IsConnected() bool {
	return q.nc != nil && q.nc.IsConnected()
}
