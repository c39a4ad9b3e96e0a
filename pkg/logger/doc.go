// Package logger provides the structured logging interface used across the
// review scraper.
//
// It wraps zerolog. Output goes to stderr so that review data can be streamed
// on stdout; when stderr is a terminal the colored console format is used,
// otherwise one JSON object per line.
//
// Components receive a Logger explicitly:
//
//	log, err := logger.New(&cfg.Logging)
//	agg := aggregator.New(cfg, aggregator.WithLogger(log))
//
// The global accessor (Initialize / GetLogger) exists for the command line
// entry point only. Tests use NewTestLogger to capture messages or
// NewNopLogger to discard them.
package logger
