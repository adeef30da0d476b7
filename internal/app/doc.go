// Package app contains the core application logic. It defines the main App
// struct, its configuration, and the primary execution lifecycle, decoupled
// from any specific entrypoint like a CLI or server.
//
// An App owns one type registry, one entity store holding the demo scene,
// and the notification pipeline: update callbacks feed a fanout that logs
// events, hands recompute work to the background scheduler and optionally
// streams events to a socket.io endpoint.
package app
