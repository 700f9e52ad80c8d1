// Package metrics provides Prometheus instrumentation for the allocation
// engine: assignment outcomes, splitter exclusions, sync results, and SRM
// verdicts.
//
// The collector owns a private registry so hosts can mount its Handler
// without interfering with other instrumentation in the process. A nil
// *Collector is a valid no-op recorder, so instrumentation points never need
// nil checks.
package metrics
