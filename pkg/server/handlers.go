package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"mercator-hq/janus/pkg/auth"
	"mercator-hq/janus/pkg/proxy"
	"mercator-hq/janus/pkg/usage"
)

// proxyStatusHeader reports the credential disposition to the caller:
// "valid-key", "invalid-key", or "malformed-credential".
const proxyStatusHeader = "Proxy-Status"

// validateResponse is the body returned by /validate on success.
type validateResponse struct {
	Status   string `json:"status"`
	Identity string `json:"identity"`
}

// usageResponse is the body returned by /api_usage.
type usageResponse struct {
	Summaries []*usage.Summary `json:"summaries"`
	Total     int64            `json:"total"`
	Records   []*usage.Record  `json:"records,omitempty"`
}

type errorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

// handleValidate checks the credential and reports the matched identity.
// It never forwards and never records usage.
func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return
	}

	identity, err := s.authenticator.Authenticate(r)
	if err != nil {
		s.writeAuthFailure(w, r, err)
		return
	}

	w.Header().Set(proxyStatusHeader, "valid-key")
	writeJSON(w, http.StatusOK, validateResponse{Status: "authorized", Identity: identity})
}

// handleUsage serves aggregated usage counts per identity. A valid
// credential is required; the identity it maps to does not scope the
// results. Optional query parameters: identity (filter), records=1
// (include matching records), limit (cap on returned records).
func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return
	}

	if _, err := s.authenticator.Authenticate(r); err != nil {
		s.writeAuthFailure(w, r, err)
		return
	}

	query := &usage.Query{
		Identity: r.URL.Query().Get("identity"),
	}

	summaries, err := s.storage.Summarize(r.Context(), query)
	if err != nil {
		s.logger.Error("usage aggregation failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "usage aggregation failed"})
		return
	}

	total, err := s.storage.Count(r.Context(), query)
	if err != nil {
		s.logger.Error("usage count failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "usage aggregation failed"})
		return
	}

	resp := usageResponse{Summaries: summaries, Total: total}
	if resp.Summaries == nil {
		resp.Summaries = []*usage.Summary{}
	}

	if r.URL.Query().Get("records") == "1" {
		records, err := s.storage.Query(r.Context(), query)
		if err != nil {
			s.logger.Error("usage query failed", "error", err)
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "usage aggregation failed"})
			return
		}
		resp.Records = records
	}

	writeJSON(w, http.StatusOK, resp)
}

// handlePing is the unauthenticated liveness endpoint.
func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("pong"))
}

// handleProxy runs the full pipeline for every other path: authenticate,
// record the outcome, forward on success. Denied requests are answered
// with 401 before any upstream contact.
func (s *Server) handleProxy(w http.ResponseWriter, r *http.Request) {
	arrived := time.Now()

	identity, err := s.authenticator.Authenticate(r)
	if err != nil {
		s.recordUsage(r, "", usage.OutcomeDenied, arrived)
		s.writeAuthFailure(w, r, err)
		s.collector.RecordRequest("", "denied", time.Since(arrived))
		return
	}

	s.recordUsage(r, identity, usage.OutcomeAuthorized, arrived)

	w.Header().Set(proxyStatusHeader, "valid-key")
	r = r.WithContext(auth.WithIdentity(r.Context(), identity))

	if err := s.forwarder.Forward(w, r); err != nil {
		s.logger.Error("forwarding failed",
			"identity", identity,
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
		kind := string(proxy.KindProtocol)
		var upstreamErr *proxy.UpstreamError
		if errors.As(err, &upstreamErr) {
			kind = string(upstreamErr.Kind)
		}
		s.collector.RecordUpstreamError(kind)
	}

	s.collector.RecordRequest(identity, "authorized", time.Since(arrived))
}

// recordUsage hands the request to the recorder. Failures are logged and
// counted, never surfaced to the caller.
func (s *Server) recordUsage(r *http.Request, identity string, outcome usage.Outcome, arrived time.Time) {
	if err := s.recorder.Record(r.Context(), identity, r, outcome, arrived); err != nil {
		s.logger.Warn("usage record dropped",
			"identity", identity,
			"outcome", string(outcome),
			"error", err,
		)
		s.collector.RecordDroppedUsage()
	}
}

// writeAuthFailure answers a denied request with 401 and a Proxy-Status
// header distinguishing a bad key from a badly shaped credential.
func (s *Server) writeAuthFailure(w http.ResponseWriter, r *http.Request, err error) {
	reason := "invalid-key"
	var authErr *auth.AuthError
	if errors.As(err, &authErr) {
		reason = authErr.ProxyStatus()
	}

	s.logger.Warn("request denied",
		"method", r.Method,
		"path", r.URL.Path,
		"remote_addr", r.RemoteAddr,
		"reason", reason,
	)

	w.Header().Set(proxyStatusHeader, reason)
	writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "authentication failed", Reason: reason})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Default().Error("failed to encode response", "error", err)
	}
}
