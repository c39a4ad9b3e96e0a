/*
Package sink delivers run results.

A Sink receives the merged result of a run. FileSink writes a JSON or YAML
document atomically, WriterSink streams it to any io.Writer and MemorySink
keeps it in memory for callers that post-process results themselves.

Deliver writes once and retries once on failure. When both attempts fail
the returned error has type sink and the result is still available to the
caller.

Default output files are named after the run:

	reviews_Acme_all_20240131_154500.json
*/
package sink
