// Package httputil holds the JSON response helpers shared by the API
// handlers: one error envelope, one status mapping for error classes.
package httputil
