// Package subscription implements the tag-subscription rate scheduler.
//
// Client sessions ask to be notified of a tag's value at a requested polling
// interval. The Scheduler clamps each request to the tag's minimum interval,
// groups committed subscriptions by effective rate, and exposes the distinct
// set of active rates so a dispatcher needs one timer per rate instead of one
// per subscription.
//
// # Two-Phase Subscribe
//
// Subscribe only validates and clamps; the accepted (handle, rate) pairs are
// held pending. SubscribeReady commits them once the transport has accepted
// the subscription. DiscardPending drops pending entries the transport
// rejected. Unsubscribe and ModifySubscription are single-phase.
//
// # Bag Semantics
//
// The same (handle, rate) pair may be subscribed several times by independent
// clients. Every occurrence is counted separately and removed by exactly one
// matching Unsubscribe or ModifySubscription.
//
// # Batch Results
//
// Every operation takes parallel arrays and reports a per-element result.
// Unknown handles and missing subscriptions are reported as not accepted; no
// operation returns an error or panics for normal input.
//
// # Locking
//
// The Scheduler performs no locking. The embedding host must serialise every
// call, reads included, typically under the lock it already holds around the
// native transport. Config.DetectConcurrentUse turns overlapping calls into a
// panic, which is useful in tests.
package subscription
