// Package audit buffers security events and delivers them to a sink off
// the request path.
//
// The Engine decides which events to emit. This package only queues them
// and hands them to the configured [Sink]; a slow or failing sink can drop
// events but never blocks or fails a login, refresh or logout.
package audit
