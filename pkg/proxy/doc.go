// Package proxy relays authorized requests to the single configured
// upstream target.
//
// The forwarder is path-agnostic: whatever method and path arrive are sent
// verbatim to the same path on the upstream. Request and response bodies
// are streamed, never buffered in full, so arbitrary-size payloads and
// chunked streaming responses pass through with no added latency. Upstream
// failures surface as 502 or 504; the proxy never retries on the caller's
// behalf.
package proxy
