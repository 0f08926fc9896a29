// Package events defines the wire contract of the task-events topic.
//
// Producers and consumers share nothing but this package: the versioned
// Envelope, the closed set of event types, and one payload shape per type.
// Payloads are validated at the consumer boundary, so a malformed or unknown
// event is rejected once, deterministically, instead of failing field by
// field during dispatch.
//
// The primary components are:
// - Envelope: the immutable message unit published to the broker
// - Payload: the decoded tagged union of per-type event data
// - DecodeCloudEvent: unwraps the delivery wrapper the sidecar posts
package events
