package influxdb

import "errors"

// Sentinel errors for telemetry operations, matched with errors.Is.
var (
	// ErrNotConnected indicates the client has been closed or never
	// connected.
	ErrNotConnected = errors.New("influxdb: not connected")

	// ErrConnectionFailed wraps a failed startup ping.
	ErrConnectionFailed = errors.New("influxdb: connection failed")

	// ErrDisabled indicates the influxdb config section is switched
	// off. The engine treats this as "run without telemetry", not as
	// a startup failure.
	ErrDisabled = errors.New("influxdb: disabled in configuration")
)
