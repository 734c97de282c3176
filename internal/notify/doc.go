// Package notify provides notification delivery for Canopy Core.
//
// Notifications are persisted to SQLite (the dashboard's read model)
// and mirrored onto MQTT at canopy/notify/{channel} for live
// subscribers. The store is the source of truth; bus delivery is best
// effort.
package notify
