// Package pubsub distributes terminal event transitions to subscribers.
//
// A processor reports every event that completes or fails to its observers;
// Observe turns a Topic into such an observer so logging, metrics or remote
// consumers can follow executions without the processor knowing about them.
// Local keeps everything in process, NATS fans transitions out over a NATS
// connection.
package pubsub
