// Package bus carries validated location events and presence transitions
// from the tracking core to observers.
//
// Delivery is at-least-once and ordered per publisher per topic. A slow
// subscriber never blocks a publisher: each subscription owns a bounded
// buffer and, when it fills, the oldest buffered event is dropped in favor
// of the newest. Drops are counted, never fatal.
//
// Two implementations exist, selected once by configuration: InProcess for
// a single instance, and Redis for fan-out across instances through Redis
// pub/sub.
package bus
