package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/kotche/memo/infrastructure/tracing"
	"github.com/kotche/memo/internal/metrics"
	"github.com/kotche/memo/internal/model"
	"github.com/kotche/memo/internal/repository/reminders"
	"github.com/kotche/memo/internal/service/kafka"
	"gopkg.in/telebot.v3"
	"log"
	"strings"
	"time"
)

const (
	defaultCheckInterval = time.Minute
	longProcessTimeout   = 10 * time.Second
)

// Sender is the part of *telebot.Bot the notifier needs.
type Sender interface {
	Send(to telebot.Recipient, what interface{}, opts ...interface{}) (*telebot.Message, error)
}

// Notifier delivers due reminder triggers. A delivered trigger is marked
// fired and announced on the broker; the consumer side removes it.
type Notifier struct {
	sender    Sender
	reminders reminders.Repository
	broker    kafka.MessageBroker
	interval  time.Duration
	now       func() time.Time
}

func New(sender Sender, reminders reminders.Repository, broker kafka.MessageBroker, interval time.Duration) *Notifier {
	if interval <= 0 {
		interval = defaultCheckInterval
	}
	return &Notifier{
		sender:    sender,
		reminders: reminders,
		broker:    broker,
		interval:  interval,
		now:       time.Now,
	}
}

// Start blocks until ctx is cancelled.
func (n *Notifier) Start(ctx context.Context) {
	log.Println("Notifier started...")

	go func() {
		if err := n.runDeleteFired(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("error deleting fired reminders: %v", err)
		}
	}()

	if err := n.sendNotifications(ctx); err != nil {
		log.Printf("error sending notifications: %v", err)
	}

	ticker := time.NewTicker(n.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Notifier stopped")
			return
		case <-ticker.C:
			if err := n.sendNotifications(ctx); err != nil {
				log.Printf("error sending notifications: %v", err)
			}
		}
	}
}

// sendNotifications delivers every pending trigger due before the end of the
// current tick, including overdue ones.
func (n *Notifier) sendNotifications(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, longProcessTimeout)
	defer cancel()

	ctx, span := tracing.StartSpan(ctx, "send_notifications")
	defer span.End()

	end := n.now().Truncate(n.interval).Add(n.interval)

	due, err := n.reminders.ListDue(ctx, end)
	if err != nil {
		return err
	}

	sent := 0
	for _, r := range due {
		fired := model.FiredReminder{UserID: r.UserID, Key: r.Key, Revision: r.Revision}

		claimed, err := n.reminders.MarkFired(ctx, fired)
		if err != nil {
			metrics.FailReminder("mark")
			log.Printf("failed to mark reminder '%s' for user '%s' fired: %v", r.Key, r.UserID, err)
			continue
		}
		if !claimed {
			// rescheduled or cancelled since ListDue
			continue
		}

		if _, err = n.sender.Send(&telebot.Chat{ID: r.ChatID}, formatNotification(r.Reminder)); err != nil {
			metrics.FailReminder("send")
			log.Printf("failed to send reminder '%s' to user '%s': %v", r.Key, r.UserID, err)

			// release the claim, the next tick retries delivery
			if err = n.reminders.UnmarkFired(ctx, fired); err != nil {
				metrics.FailReminder("release")
				log.Printf("failed to release reminder '%s' for user '%s': %v", r.Key, r.UserID, err)
			}
			continue
		}
		sent++
		log.Printf("reminder '%s' sent to user '%s'", r.Key, r.UserID)

		if err = n.publishFired(ctx, fired); err != nil {
			metrics.FailReminder("publish")
			log.Printf("failed to send message to kafka: %v", err)
		}
	}

	metrics.SendReminders(sent)
	return nil
}

func (n *Notifier) publishFired(ctx context.Context, fired model.FiredReminder) error {
	value, err := json.Marshal(fired)
	if err != nil {
		return fmt.Errorf("failed to encode fired reminder: %w", err)
	}
	return n.broker.SendMessage(ctx, []byte(fired.UserID), value)
}

func (n *Notifier) runDeleteFired(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		_, val, err := n.broker.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Printf("error reading message from kafka: %v", err)
			continue
		}

		if err = n.deleteFired(ctx, val); err != nil {
			metrics.FailReminder("delete")
			log.Printf("error deleting fired reminder: %v", err)
		}
	}
}

func (n *Notifier) deleteFired(ctx context.Context, val []byte) error {
	var fired model.FiredReminder
	if err := json.Unmarshal(val, &fired); err != nil {
		return fmt.Errorf("failed to decode fired reminder '%s': %w", val, err)
	}

	ctx, cancel := context.WithTimeout(ctx, longProcessTimeout)
	defer cancel()

	if err := n.reminders.DeleteFired(ctx, fired); err != nil {
		return err
	}

	log.Printf("fired reminder '%s' for user '%s' removed", fired.Key, fired.UserID)
	return nil
}

func formatNotification(r model.Reminder) string {
	var b strings.Builder
	b.WriteString("🔔 ")
	b.WriteString(r.Title)
	if r.Body != "" {
		b.WriteString("\n")
		b.WriteString(r.Body)
	}
	return b.String()
}
