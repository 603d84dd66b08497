// Package orderbook is the matching core of a single instrument: the
// two-sided price ladder, limit and market matching with price-time
// priority, cancellation, and stop order triggering.
//
// Nothing in this package locks or performs I/O. A single writer owns
// a MatchingEngine and its StopMonitor.
package orderbook
