package mqtt

import (
	"fmt"
)

// maxPayloadSize caps outbound messages at 1MB. Notification and
// engine event payloads are tiny; anything larger indicates a bug
// upstream, and most brokers reject it anyway.
const maxPayloadSize = 1 << 20

// Publish sends a payload to an MQTT topic and waits for the broker
// acknowledgment (bounded by defaultPublishTimeout).
//
// retained should be true only for state topics like
// canopy/system/status, where late subscribers need the last value;
// notifications and capture commands are events and go out
// unretained.
//
//	topic := mqtt.Topics{}.Notification("alerts")
//	err := client.Publish(topic, payload, 1, false)
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes", ErrPublishFailed, len(payload), maxPayloadSize)
	}

	if !c.IsConnected() {
		return ErrNotConnected
	}

	token := c.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}

	return nil
}

// PublishString publishes a string payload.
func (c *Client) PublishString(topic string, payload string, qos byte, retained bool) error {
	return c.Publish(topic, []byte(payload), qos, retained)
}

// PublishRetained publishes a retained message at the configured
// default QoS. For state topics only.
func (c *Client) PublishRetained(topic string, payload []byte) error {
	return c.Publish(topic, payload, byte(c.cfg.QoS), true)
}
