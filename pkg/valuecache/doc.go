// Package valuecache reads current tag values for the periodic dispatcher.
//
// The value cache itself is owned by another service; this package only
// defines the read contract and two adapters: an in-process Memory cache and
// a Redis-backed cache that reads one key per tag with a single MGET.
package valuecache
