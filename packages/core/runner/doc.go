// Package runner executes suites of HTTP test cases.
//
// Each case builds one request, executes it once and evaluates its
// assertions against the response. Cases run sequentially by default or
// concurrently with a bounded worker count. Lifecycle events are delivered
// to any number of Listeners.
package runner
