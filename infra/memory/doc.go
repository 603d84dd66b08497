// Package memory holds allocation helpers for the sequencer hot path.
package memory
