package action

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/canopyops/canopy-core/internal/infrastructure/mqtt"
	"github.com/canopyops/canopy-core/internal/notify"
	"github.com/canopyops/canopy-core/internal/plant"
)

// Sender delivers notifications. Satisfied by notify.Notifier.
type Sender interface {
	Send(ctx context.Context, cfg map[string]any) (*notify.Notification, error)
}

// Publisher pushes capture commands onto the message bus.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// Logger defines the logging interface used by the Dispatcher.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Dispatcher routes action descriptors to their side effects.
//
// Actions are the leaf operations shared by rules and workflows. Each
// returns a result map echoing its inputs plus a confirmation flag and
// timestamp. Unknown types return ErrUnknownType so callers can warn
// and skip without aborting the remaining actions.
type Dispatcher struct {
	analyzer  plant.Analyzer
	sender    Sender
	publisher Publisher
	tasks     TaskRepository
	logger    Logger
}

// NewDispatcher creates an action dispatcher. analyzer, sender, and
// publisher may be nil; the matching actions then run as echo-only
// stubs, which keeps rule execution usable in degraded deployments.
func NewDispatcher(analyzer plant.Analyzer, sender Sender, publisher Publisher, tasks TaskRepository, logger Logger) *Dispatcher {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Dispatcher{
		analyzer:  analyzer,
		sender:    sender,
		publisher: publisher,
		tasks:     tasks,
		logger:    logger,
	}
}

// Execute runs one action and returns its result map.
//
// plantID may be empty; an explicit "plantId" in cfg takes precedence
// over it. A returned error means the side effect itself failed, not
// that the action was misconfigured in an expected way.
func (d *Dispatcher) Execute(ctx context.Context, actionType Type, plantID string, cfg map[string]any) (map[string]any, error) {
	if cfg == nil {
		cfg = map[string]any{}
	}
	if id, ok := cfg["plantId"].(string); ok && id != "" {
		plantID = id
	}

	switch actionType {
	case TypeAnalyze:
		return d.analyze(ctx, plantID, cfg)
	case TypeCapture:
		return d.capture(plantID, cfg)
	case TypeNotify:
		return d.sendNotification(ctx, cfg)
	case TypeCreateTask:
		return d.createTask(ctx, plantID, cfg)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, actionType)
	}
}

func (d *Dispatcher) analyze(ctx context.Context, plantID string, cfg map[string]any) (map[string]any, error) {
	analysisType := plant.AnalysisHealth
	if raw, ok := cfg["analysisType"].(string); ok && raw != "" {
		analysisType = plant.AnalysisType(raw)
	}

	result := map[string]any{
		"triggered":    true,
		"plantId":      plantID,
		"analysisType": string(analysisType),
		"timestamp":    time.Now().UTC().Format(time.RFC3339),
	}

	if d.analyzer == nil {
		return result, nil
	}

	data, err := d.analyzer.TriggerAnalysis(ctx, plantID, analysisType, cfg)
	if err != nil {
		return nil, fmt.Errorf("triggering analysis: %w", err)
	}
	result["data"] = data
	return result, nil
}

func (d *Dispatcher) capture(plantID string, cfg map[string]any) (map[string]any, error) {
	result := map[string]any{
		"sent":      true,
		"plantId":   plantID,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	if d.publisher == nil {
		return result, nil
	}

	payload, err := json.Marshal(map[string]any{
		"plantId":     plantID,
		"config":      cfg,
		"requestedAt": result["timestamp"],
	})
	if err != nil {
		return nil, fmt.Errorf("marshalling capture command: %w", err)
	}

	topic := mqtt.Topics{}.CaptureCommand(plantID)
	if err := d.publisher.Publish(topic, payload, 1, false); err != nil {
		return nil, fmt.Errorf("publishing capture command: %w", err)
	}

	d.logger.Debug("capture command published", "plant_id", plantID, "topic", topic)
	return result, nil
}

func (d *Dispatcher) sendNotification(ctx context.Context, cfg map[string]any) (map[string]any, error) {
	result := map[string]any{
		"sent":      true,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	if d.sender == nil {
		return result, nil
	}

	notification, err := d.sender.Send(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("sending notification: %w", err)
	}
	result["notificationId"] = notification.ID
	return result, nil
}

func (d *Dispatcher) createTask(ctx context.Context, plantID string, cfg map[string]any) (map[string]any, error) {
	title, _ := cfg["title"].(string)
	if title == "" {
		return nil, fmt.Errorf("%w: create_task requires a title", ErrInvalidConfig)
	}

	task := &Task{
		Title:   title,
		PlantID: plantID,
	}
	if desc, ok := cfg["description"].(string); ok {
		task.Description = desc
	}
	if priority, ok := cfg["priority"].(string); ok && priority != "" {
		task.Priority = priority
	}

	if err := d.tasks.Create(ctx, task); err != nil {
		return nil, fmt.Errorf("creating task: %w", err)
	}

	return map[string]any{
		"created":   true,
		"taskId":    task.ID,
		"title":     task.Title,
		"timestamp": task.CreatedAt.Format(time.RFC3339),
	}, nil
}
