// Package http provides the request builders used by apicheck cases.
//
// A request is built from a base URL and an endpoint, then decorated with
// headers, query parameters and a body before being executed:
//   - GetRequest sends headers and query parameters
//   - PostRequest additionally sends the raw body
//
// Both execute through a Client, a thin wrapper over resty that adds
// timeouts, redirect handling, default headers and an optional rate limit.
package http
