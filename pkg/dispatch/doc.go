// Package dispatch runs one periodic timer per active update interval and
// reads the values of every tag subscribed at that interval.
//
// # Timers
//
// The Dispatcher keeps exactly one ticker per interval. Add and Remove are
// driven by the scheduler's interval observer, or Sync reconciles the running
// set against a full interval list. A period shorter than MinimumPeriod is
// raised to it, so a zero rate never spins.
//
// # Locking
//
// On each tick the dispatcher takes the host lock only to copy the tag list
// of the interval. The value cache is read outside the lock, and the batch is
// handed to the OnBatch callback outside the lock as well. Add and Remove
// never take the host lock, so they are safe to call from inside a scheduler
// call. Stop waits for tick goroutines and must not be called while holding
// the host lock.
package dispatch
