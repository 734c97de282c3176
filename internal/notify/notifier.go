package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/canopyops/canopy-core/internal/infrastructure/mqtt"
)

// Publisher is the interface for pushing notifications onto the message bus.
type Publisher interface {
	// Publish sends a message to the specified MQTT topic.
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// Logger defines the logging interface used by the Notifier.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Notifier persists notifications and pushes them to subscribers.
//
// Persistence is the source of truth: a notification is stored first,
// then best-effort published to canopy/notify/{channel}. A publish
// failure is logged but does not fail the send, so rule and workflow
// actions keep their always-succeed contract.
type Notifier struct {
	repo      Repository
	publisher Publisher
	logger    Logger
}

// NewNotifier creates a notifier. publisher may be nil (store-only mode).
func NewNotifier(repo Repository, publisher Publisher, logger Logger) *Notifier {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Notifier{
		repo:      repo,
		publisher: publisher,
		logger:    logger,
	}
}

// Send creates a notification from an action/step config and delivers it.
//
// Recognised config keys: "title", "message", "channel". The whole
// config map is retained as the notification payload.
func (n *Notifier) Send(ctx context.Context, cfg map[string]any) (*Notification, error) {
	title, _ := cfg["title"].(string)
	message, _ := cfg["message"].(string)
	if title == "" && message == "" {
		return nil, ErrInvalidConfig
	}
	if title == "" {
		title = message
	}
	channel, _ := cfg["channel"].(string)

	notification := &Notification{
		Channel: channel,
		Title:   title,
		Message: message,
		Payload: cfg,
	}

	if err := n.repo.Create(ctx, notification); err != nil {
		return nil, fmt.Errorf("storing notification: %w", err)
	}

	n.publish(notification)
	return notification, nil
}

// publish pushes the stored notification to the bus, best effort.
func (n *Notifier) publish(notification *Notification) {
	if n.publisher == nil {
		return
	}

	payload, err := json.Marshal(notification)
	if err != nil {
		n.logger.Warn("marshalling notification for publish", "error", err)
		return
	}

	topic := mqtt.Topics{}.Notification(notification.Channel)
	if err := n.publisher.Publish(topic, payload, 1, false); err != nil {
		n.logger.Warn("publishing notification",
			"notification_id", notification.ID,
			"topic", topic,
			"error", err,
		)
		return
	}

	n.logger.Debug("notification published",
		"notification_id", notification.ID,
		"topic", topic,
	)
}
