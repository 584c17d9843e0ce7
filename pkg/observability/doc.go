/*
Package observability turns reactive graph events into prometheus metrics
and structured logs.

Metrics.Hooks and LogHooks both return reactive.Hooks; combine them with
reactive.ComposeHooks and hand the result to every session graph.
*/
package observability
