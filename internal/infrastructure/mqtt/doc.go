// Package mqtt wraps the Eclipse Paho client for Canopy Core.
//
// The engine uses MQTT as its outbound transport: notifications are
// published to canopy/notify/{channel} and capture commands to
// canopy/command/capture/{plantID}. The wrapper adds connection
// management, Last Will and Testament for offline detection, and
// automatic reconnection with exponential backoff.
//
// # Thread Safety
//
// All Client methods are safe for concurrent use.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	topic := mqtt.Topics{}.Notification("alerts")
//	err = client.Publish(topic, payload, 1, false)
package mqtt
