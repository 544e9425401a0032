// Package proxy implements the OpenAI-compatible front door: parsing chat
// completion requests into the neutral provider format, formatting policy
// engine output back into OpenAI responses and SSE chunks, and mapping
// internal errors to OpenAI error payloads.
//
// The package is deliberately free of transport wiring. HTTP handlers live
// in proxy/handlers, middleware in proxy/middleware, and wire types in
// proxy/types.
package proxy
