// Package service is the only write path into the matching engine.
//
// OrderService serializes every mutation and every consistent read through
// one goroutine (Run). A mutation is journaled, applied, and followed by
// stop evaluation inside that goroutine; history and notification happen
// afterwards in the caller's goroutine, so slow sinks never hold the book.
package service
