// Package indicatorpipe provides a small, staged pipeline for attaching a
// per-country statistical indicator to a tabular dataset:
//
//   - Fetching: one indicator observation per ISO-3166 alpha-3 key, with
//     fallback chains, caching and local overrides
//   - Aggregation: order-preserving collection of per-key results with
//     failure isolation, optionally concurrent
//   - Merging: left join onto a delimited dataset through a dense, 1-based
//     positional foreign key
//   - Observability: stage middleware, structured logging and metrics hooks
//
// The positional join relies on the request key order matching the
// dataset's categorical encoding. Reordering the key list silently changes
// the join.
package indicatorpipe
