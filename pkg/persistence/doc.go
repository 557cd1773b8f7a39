// Package persistence writes scheduler snapshots to disk.
//
// Snapshots are diagnostic: they record which tags were subscribed at which
// rates when the server stopped or when an operator asked for one. They are
// never replayed into a scheduler, since the sessions that owned the
// subscriptions do not survive a restart.
package persistence
