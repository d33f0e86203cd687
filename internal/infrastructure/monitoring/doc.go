/*
Package monitoring collects Prometheus metrics for the API, stub exchanges,
terminal sessions and connectivity probes.

Each Metrics value owns its registry, so tests can build as many as they like
without duplicate registration panics.

# Usage

	metrics := monitoring.NewMetrics()
	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", monitoring.Handler(metrics))

	transport.SetRecorder(metrics) // stub round trips
	metrics.ProbeCompleted(true)
*/
package monitoring
