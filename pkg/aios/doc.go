// Package aios is a client for the AIOS core service HTTP API.
//
// A Client is safe for concurrent use. It never treats an HTTP status as an
// error: any response whose body decodes as JSON is returned to the caller,
// who is responsible for inspecting it for service-level failures. Only
// transport failures and undecodable bodies produce an *HTTPError.
package aios
