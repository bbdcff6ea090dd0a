// Package audit delivers authentication events to pluggable sinks.
//
// # Components
//
//   - [Sink]: event consumer (channel, JSON lines, zap, no-op).
//   - [Dispatcher]: buffered async relay, either dropping or blocking when full.
//   - [Event]: one audit record with timestamp, type, principal, IP and metadata.
//
// The engine decides which events to emit; this package only buffers and
// delivers them. It must not import wmsauth.
package audit
