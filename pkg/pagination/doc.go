// Package pagination walks the pages of one catalog query in order.
//
// The catalog reports total_pages on every page. Walking starts at page 1 and
// stops once the current page number reaches that count. A page answered with
// an unrecoverable status aborts the walk but keeps every item gathered so
// far; any other failure (exhausted retries, network) is returned to the
// caller and discards nothing it already holds.
//
// Example usage:
//
//	walker := pagination.NewWalker[Record](fetcher, logger)
//	result, err := walker.Walk(ctx)
//	if err != nil {
//		return err // terminal
//	}
//	if result.State == pagination.StateAborted {
//		// result.Err explains why, result.Items still holds earlier pages
//	}
//
// Pages are fetched strictly one after another so the shared rate budget is
// consumed in order.
package pagination
