// Package events publishes Overseer activity: device registrations, fire
// alarm confirmations and access decisions.
//
// RedisPublisher sends each event as JSON on the building:<name>:events
// pub/sub channel. LogPublisher writes events to the context logger and is
// used when no Redis address is configured.
package events
