// Package events fans workspace audit events out to subscribers.
//
// Publishers receive an Event after the operation that produced it has
// committed. Two implementations are provided: Bus, an in-process
// publisher used by tests and single-binary deployments, and Streams,
// which appends each event to a Redis stream.
package events
