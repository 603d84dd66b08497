// Package broadcaster implements the background job that publishes the
// trade tape from the exit WAL to Kafka.
package broadcaster
