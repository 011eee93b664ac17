// Package httputil provides shared HTTP response/request helpers for the API
// handlers: JSON envelopes, typed error responses, body decoding and query
// parameter parsing.
package httputil
