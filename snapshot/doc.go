// Package snapshot persists a point-in-time image of the book and the
// pending stops. An image carries the last command sequence it covers, so
// recovery replays only the entry WAL records after it.
package snapshot
