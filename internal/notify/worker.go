package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

// Worker drains the notification topic and fans each event out to email
// and push. Handler errors are logged and the message is still committed:
// notifications are best effort, an unreachable provider must not wedge
// the consumer group.
type Worker struct {
	reader *kafka.Reader
	email  *EmailClient
	push   *PushSender
	log    *slog.Logger
}

func NewWorker(brokers []string, topic, groupID string, email *EmailClient, push *PushSender, log *slog.Logger) *Worker {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: time.Second,
		StartOffset:    kafka.FirstOffset,
	})
	return &Worker{reader: reader, email: email, push: push, log: log}
}

func (w *Worker) Start(ctx context.Context) error {
	w.log.Info("notification worker started", "topic", w.reader.Config().Topic)

	for {
		msg, err := w.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return ctx.Err()
			}
			w.log.Error("fetch message failed", "error", err)
			time.Sleep(time.Second)
			continue
		}

		if err := w.handle(ctx, msg.Value); err != nil {
			w.log.Error("notification dispatch failed", "error", err)
		}

		if err := w.reader.CommitMessages(ctx, msg); err != nil {
			w.log.Error("commit failed", "error", err)
		}
	}
}

func (w *Worker) Close() error {
	return w.reader.Close()
}

func (w *Worker) handle(ctx context.Context, raw []byte) error {
	var event Event
	if err := json.Unmarshal(raw, &event); err != nil {
		return fmt.Errorf("unmarshal notification event: %w", err)
	}

	subject, body := render(event)
	if subject == "" {
		w.log.Warn("unknown notification event type ignored", "type", event.Type)
		return nil
	}

	sendCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	if w.email.Enabled() {
		if err := w.email.Send(sendCtx, event.Email, subject, body); err != nil {
			w.log.Error("email send failed", "type", event.Type, "error", err)
		}
	}
	if w.push != nil && w.push.Enabled() {
		if err := w.push.Send(sendCtx, event.Email, subject, body); err != nil {
			w.log.Error("push send failed", "type", event.Type, "error", err)
		}
	}
	return nil
}

func render(event Event) (subject, body string) {
	total := fmt.Sprintf("%.2f", float64(event.TotalCents)/100)
	switch event.Type {
	case EventOrderCreated:
		return "We received your order",
			fmt.Sprintf("Hi %s, your order %s for %s is being prepared.", event.Name, event.OrderID, total)
	case EventOrderPaid:
		return "Payment confirmed",
			fmt.Sprintf("Hi %s, payment for order %s (%s) went through. We are on it.", event.Name, event.OrderID, total)
	case EventOrderFailed:
		return "Payment failed",
			fmt.Sprintf("Hi %s, payment for order %s did not complete. No charge was made.", event.Name, event.OrderID)
	case EventUserRegistered:
		return "Verify your email",
			fmt.Sprintf("Welcome! Confirm your address with this code: %s", event.Token)
	case EventPasswordReset:
		return "Password reset requested",
			fmt.Sprintf("Use this code to reset your password: %s. Ignore this mail if it wasn't you.", event.Token)
	default:
		return "", ""
	}
}
