package mail

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"github.com/sceneit/apiserver/internal/mq"
)

const messageKindAttr = "kind"

// Publisher is the publishing side of the message queue.
type Publisher interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
}

// Subscriber is the consuming side of the message queue.
type Subscriber interface {
	Subscribe(ctx context.Context, channel string, handler mq.Handler) error
}

// Sender delivers a message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// QueueSender hands messages to the mailer worker through a queue.
type QueueSender struct {
	publisher Publisher
	topic     string
}

func NewQueueSender(publisher Publisher, topic string) *QueueSender {
	return &QueueSender{publisher: publisher, topic: topic}
}

func (q *QueueSender) Send(ctx context.Context, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	_, err = q.publisher.Publish(ctx, q.topic, data, map[string]string{
		messageKindAttr:    "mail",
		mq.ContentTypeAttr: "application/json",
	})
	return err
}

// Worker consumes queued messages and delivers them with a Sender.
type Worker struct {
	subscriber Subscriber
	topic      string
	sender     Sender
	logger     *slog.Logger
}

func NewWorker(subscriber Subscriber, topic string, sender Sender, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{subscriber: subscriber, topic: topic, sender: sender, logger: logger}
}

// Run blocks until ctx is cancelled or the subscription fails.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("mailer worker started", "topic", w.topic)
	err := w.subscriber.Subscribe(ctx, w.topic, w.Handle)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Handle delivers one queued message. Malformed payloads are dropped;
// delivery failures are returned so the broker redelivers.
func (w *Worker) Handle(ctx context.Context, m mq.Message) error {
	var msg Message
	if err := json.Unmarshal(m.Data, &msg); err != nil || strings.TrimSpace(msg.To) == "" {
		w.logger.Warn("dropping malformed mail message", "message_id", m.ID, "error", err)
		return nil
	}

	if err := w.sender.Send(ctx, msg); err != nil {
		w.logger.Error("mail delivery failed", "message_id", m.ID, "error", err)
		return err
	}
	w.logger.Info("mail delivered", "message_id", m.ID, "subject", msg.Subject)
	return nil
}
