// Package log provides logkv's structured logging facade and utilities.
//
// # Overview
//
// The package exposes a small Logger interface with leveled methods and a
// Field type for structured context. It is backed by zap so that the same
// core can be shared with third-party clients (the Kafka client logs through
// Zap()).
//
// Quick start
//
//	l := log.NewLogger(
//	    log.WithLevel(log.InfoLevel),
//	    log.WithFormat("text"),
//	)
//	l = l.With(log.Component("storereader"), log.Str("topic", "_kvlog"))
//	l.Info("reader started", log.Int64("offset", 42))
//
// # Configuration
//
// Use ApplyConfig to build a logger from a declarative Config (level and
// json/text format). RedirectStdLog routes the standard library logger, used
// by Pebble, through a Logger.
package log
