// Package metrics provides Prometheus metrics for the delivery backends and
// the database connection pool.
//
// Metric categories:
//   - Provider metrics (send counts, latency, bulk batch sizes, call errors)
//   - Database metrics (connection pool gauges)
//
// HTTP request metrics live in the handler layer, next to the middleware
// that records them.
//
// Example usage:
//
//	start := time.Now()
//	res, err := backend.Send(ctx, n)
//	if err != nil {
//	    metrics.RecordProviderCallError(backend.Name())
//	    return err
//	}
//	metrics.RecordProviderSend(backend.Name(), channel, string(res.Outcome), time.Since(start))
package metrics
