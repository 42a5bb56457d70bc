// Package prometheus renders adminAuth metrics in Prometheus text exposition format.
//
// Mount [Exporter.Handler] on a metrics route. Counters are named
// adminauth_*_total; the login latency histogram is adminauth_login_latency_seconds.
// Nothing is registered in a global registry.
package prometheus
