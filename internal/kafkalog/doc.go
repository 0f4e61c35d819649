// Package kafkalog backs the commit log with a Kafka cluster through
// franz-go. It provides a single-partition consumer, a producer pinned to
// partition 0, and consumer-group offsets stored in Kafka.
package kafkalog
