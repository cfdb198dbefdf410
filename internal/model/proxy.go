// Package model defines shared types for the proxy.
package model

import "io"

// UpstreamResponse is the raw result of one outbound fetch.
type UpstreamResponse struct {
	StatusCode int
	// Reason is the reason phrase the upstream sent with its status line.
	Reason string
	Body   io.ReadCloser
}

// OK reports whether the upstream answered with a 2xx status.
func (r *UpstreamResponse) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode <= 299
}

// ErrorResponse is the JSON body written for every failed proxy request.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
