// Package server exposes a gateway over HTTP.
//
// Routes:
//
//	POST /api/{name}  call a function; the body selects the calling convention
//	GET  /api/docs    {"endpoints": [names...]}
//	GET  /            redirect to /api/docs
//	GET  /healthz     {"status": "ok"} while the registry is ready
//	GET  /metrics     Prometheus metrics, when enabled
//	     /mcp         MCP streamable HTTP endpoint, when enabled
//
// Every call answers 200 with a result or error envelope. Non-200 statuses
// are reserved for transport failures: malformed JSON (400), oversized
// bodies (413), wrong method (405), rate limiting (429), saturation (503)
// and call timeouts (504).
package server
