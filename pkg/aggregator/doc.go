/*
Package aggregator runs the per-source scraping chains for one company and
merges their reviews into a single result.

Each selected source gets its own adapter, paginator, pacer and normalizer.
Chains run one after another by default, or in goroutines bounded by a
weighted semaphore when concurrent aggregation is enabled; either way the
merged output is identical. Reviews are ordered by the requested source
order and then by discovery order within a source, and duplicates within a
source are dropped keeping the first occurrence.

A failing source never fails the run. Its report is marked partial or
failed and the other sources continue. Cancelling the context stops all
chains promptly; whatever was collected is returned with the run marked as
cancelled.

Basic usage:

	agg, err := aggregator.New(cfg, aggregator.WithLogger(log))
	if err != nil {
		return err
	}
	res, err := agg.Run(ctx, "Acme", window, []models.Source{models.SourceG2})

Progress can be followed with an Observer. LogObserver writes events to a
logger, MetricsObserver counts them in a Prometheus registry and
MultiObserver fans out to several observers.
*/
package aggregator
