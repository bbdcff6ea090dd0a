// Package httpapi serves the wmsauth protocol over HTTP.
//
// Routes live under /api (login, refresh-token, logout, me,
// change-password) plus /healthz and an optional /metrics. Every /api
// response uses the {isSuccess, code, errorMessage, data} envelope and the
// HTTP status equals code.
package httpapi
