// Package middleware contains HTTP middleware for the Fiber application of the serve command.
//
// # Components
//
//   - auth: API key validation protecting every route but /health.
//   - rayid: a unique request id (RayID) per incoming request, injected into the context
//     and the response headers for tracing.
package middleware
