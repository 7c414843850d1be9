// Package metrics provides Prometheus metrics for the asset catalog service.
//
// Metrics are registered at package load via promauto and exposed by the
// metrics HTTP endpoint configured in main. InitializeMetrics pre-populates
// label combinations so dashboards see zero values instead of absent series.
package metrics
