/*
Package observability exposes session lifecycle counters to Prometheus.

Metrics are fed through domain.LifecycleHooks, so any component that emits
session events can be measured without importing Prometheus itself:

	m := observability.NewMetrics(prometheus.DefaultRegisterer)
	client := lattice.New(driver, lattice.WithHooks(m.Hooks()))
*/
package observability
