// Package api exposes commitcore over HTTP with Gin.
//
// Handlers follow a Register(rg) convention and are mounted under /api/v1 by
// NewRouter, which also installs CORS, security headers, body limits, request
// IDs, Prometheus instrumentation and per-IP rate limiting.
package api
