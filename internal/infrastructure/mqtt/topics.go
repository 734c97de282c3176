package mqtt

import "fmt"

// Topic prefixes for Canopy Core MQTT traffic.
//
// All topics use the flat scheme: canopy/{category}/{qualifier...}
const (
	// TopicPrefix is the base for all Canopy topics.
	TopicPrefix = "canopy"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "canopy/system"
)

// Topics provides builders for Canopy MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	topic := topics.Notification("alerts")
//	// Returns: "canopy/notify/alerts"
type Topics struct{}

// Notification returns the topic for outbound notifications on a channel.
//
// Example: canopy/notify/alerts
func (Topics) Notification(channel string) string {
	return fmt.Sprintf("%s/notify/%s", TopicPrefix, channel)
}

// CaptureCommand returns the topic for camera capture commands for a plant.
//
// Example: canopy/command/capture/plant-42
func (Topics) CaptureCommand(plantID string) string {
	return fmt.Sprintf("%s/command/capture/%s", TopicPrefix, plantID)
}

// EngineEvent returns the topic for engine lifecycle events.
//
// Example: canopy/engine/event/tick_complete
func (Topics) EngineEvent(eventType string) string {
	return fmt.Sprintf("%s/engine/event/%s", TopicPrefix, eventType)
}

// SystemStatus returns the system status topic.
//
// Example: canopy/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// AllNotifications returns a pattern matching all notification topics.
//
// Pattern: canopy/notify/+
func (Topics) AllNotifications() string {
	return fmt.Sprintf("%s/notify/+", TopicPrefix)
}

// AllCaptureCommands returns a pattern matching all capture commands.
//
// Pattern: canopy/command/capture/+
func (Topics) AllCaptureCommands() string {
	return fmt.Sprintf("%s/command/capture/+", TopicPrefix)
}
