// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package proxyapi implements the public-facing HTTP surface of the SAP
// proxy: /blyss/setup, /query, /vectors/upsert, and passthrough of
// everything else to the configured upstream (spec.md §4.6, §6). It plays
// the same role as internal/ratelimiter/api.Server in the teacher codebase —
// a Server type holding its dependencies, with RegisterRoutes attaching
// handlers to a caller-owned *http.ServeMux so main retains control of the
// http.Server lifecycle for graceful shutdown.
package proxyapi

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"sapproxy/internal/backend"
	"sapproxy/internal/keystream"
	"sapproxy/internal/query"
	"sapproxy/internal/sap"
	"sapproxy/internal/sapconfig"
	"sapproxy/internal/telemetry"
	"sapproxy/internal/upsert"
	"sapproxy/internal/upstream"
)

const dataKeyHeader = "X-Data-Key"

// Server handles the proxy's HTTP requests. It holds the shared
// configuration snapshot store and the upstream HTTP client; it carries no
// other cross-request state (spec.md §5).
type Server struct {
	cfg      *sapconfig.Store
	upstream *upstream.Client
	query    query.Pipeline
	log      *log.Logger
}

// NewServer constructs a Server. logger defaults to log.Default() if nil.
func NewServer(cfg *sapconfig.Store, client *upstream.Client, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	return &Server{cfg: cfg, upstream: client, log: logger}
}

// RegisterRoutes attaches the proxy's handlers to mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/blyss/setup", s.handleSetup)
	mux.HandleFunc("/query", s.handleQuery)
	mux.HandleFunc("/vectors/upsert", s.handleUpsert)
	mux.HandleFunc("/", s.handlePassthrough)
}

type setupRequest struct {
	Upstream string  `json:"upstream"`
	Beta     float64 `json:"beta"`
}

// handleSetup implements POST /blyss/setup (spec.md §4.6, §6). It is
// intentionally unauthenticated; securing it is a deployment concern.
func (s *Server) handleSetup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req setupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if err := s.cfg.Set(req.Upstream, float32(req.Beta)); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	telemetry.SetupTotal.Inc()
	s.log.Printf("blyss/setup: upstream=%s beta=%v", req.Upstream, req.Beta)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// handleQuery implements POST /query (spec.md §4.4).
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer telemetry.ObserveQueryDuration(start)

	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	key, err := decodeDataKey(r.Header.Get(dataKeyHeader))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "reading request body", http.StatusBadRequest)
		return
	}

	var q backend.QueryRequest
	if err := json.Unmarshal(body, &q); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	snap := s.cfg.Load()
	headers := upstream.ScrubRequestHeaders(r.Header)

	if query.IsPassthrough(&q) {
		// id-based query: opaque passthrough, no transform, no rerank
		// (spec.md §4.4 step 1).
		telemetry.QueriesTotal.Inc()
		telemetry.PassthroughQueriesTotal.Inc()
		s.forwardVerbatim(w, r.Context(), r.Method, snap.UpstreamURL, "query", headers, body)
		return
	}

	if len(q.Values) == 0 {
		http.Error(w, sap.ErrInvalidRecord.Error(), http.StatusBadRequest)
		return
	}

	upReq, _, err := s.query.EncryptQuery(key, &q, snap.Beta)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	upBody, err := json.Marshal(upReq)
	if err != nil {
		http.Error(w, "encoding upstream request", http.StatusInternalServerError)
		return
	}
	headers.Set("Content-Type", "application/json")

	resp, err := s.upstream.Forward(r.Context(), http.MethodPost, snap.UpstreamURL, "query", headers, upBody)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		http.Error(w, "reading upstream response", http.StatusBadGateway)
		return
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		telemetry.UpstreamErrorsTotal.Inc()
		writeWrappedUpstreamError(w, resp.StatusCode, respBody)
		return
	}

	var upResp backend.QueryResponse
	if err := json.Unmarshal(respBody, &upResp); err != nil {
		http.Error(w, "invalid upstream response", http.StatusBadGateway)
		return
	}
	telemetry.OverfetchMatches.Observe(float64(len(upResp.Matches)))

	truncated, cipherSnapshot, missing := query.Rerank(upResp.Matches, key, q.Values, q.TopK)
	if missing > 0 {
		telemetry.MissingParametersTotal.Add(float64(missing))
		s.log.Printf("query: %d match(es) dropped for missing SAP parameters", missing)
	}

	telemetry.QueriesTotal.Inc()
	writeJSON(w, http.StatusOK, map[string]any{
		"matches":      truncated,
		"ciphermatches": cipherSnapshot,
	})
}

// handleUpsert implements POST /vectors/upsert (spec.md §4.5).
func (s *Server) handleUpsert(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	key, err := decodeDataKey(r.Header.Get(dataKeyHeader))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "reading request body", http.StatusBadRequest)
		return
	}

	var req backend.UpsertRequest
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	snap := s.cfg.Load()
	if err := upsert.EncryptVectors(key, &req, snap.Beta); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, sap.ErrUnsupportedSparse) {
			status = http.StatusNotImplemented
		} else if errors.Is(err, sap.ErrInvalidRecord) {
			status = http.StatusBadRequest
		}
		http.Error(w, err.Error(), status)
		return
	}

	upBody, err := json.Marshal(&req)
	if err != nil {
		http.Error(w, "encoding upstream request", http.StatusInternalServerError)
		return
	}

	headers := upstream.ScrubRequestHeaders(r.Header)
	headers.Set("Content-Type", "application/json")

	telemetry.UpsertsTotal.Inc()
	telemetry.UpsertedVectorsTotal.Add(float64(len(req.Vectors)))
	s.forwardVerbatim(w, r.Context(), http.MethodPost, snap.UpstreamURL, "vectors/upsert", headers, upBody)
}

// handlePassthrough implements the catch-all route of spec.md §4.6: any
// path not matched above is forwarded to the data-plane upstream, except a
// "databases" prefix which routes to the control-plane URL instead.
func (s *Server) handlePassthrough(w http.ResponseWriter, r *http.Request) {
	snap := s.cfg.Load()

	path := strings.TrimPrefix(r.URL.Path, "/")
	target := snap.UpstreamURL
	if strings.HasPrefix(path, "databases") {
		target = snap.ControlPlaneURL
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "reading request body", http.StatusBadRequest)
		return
	}
	headers := upstream.ScrubRequestHeaders(r.Header)
	s.forwardVerbatim(w, r.Context(), r.Method, target, path, headers, body)
}

// forwardVerbatim forwards a request and relays the upstream response's
// status, headers (less hop-by-hop) and body unchanged.
func (s *Server) forwardVerbatim(w http.ResponseWriter, ctx context.Context, method, baseURL, path string, headers http.Header, body []byte) {
	resp, err := s.upstream.Forward(ctx, method, baseURL, path, headers, body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	upstream.CopyResponseHeaders(w, resp.Header)
	w.WriteHeader(resp.StatusCode)
	_, _ = io.Copy(w, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		telemetry.UpstreamErrorsTotal.Inc()
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeWrappedUpstreamError(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error":           "upstream error",
		"upstream_status": status,
		"upstream_body":   json.RawMessage(body),
	})
}

func decodeDataKey(header string) ([]byte, error) {
	if header == "" {
		return nil, sap.ErrInvalidKey
	}
	key, err := base64.StdEncoding.DecodeString(header)
	if err != nil {
		return nil, sap.ErrInvalidKey
	}
	if len(key) != keystream.KeySize {
		return nil, sap.ErrInvalidKey
	}
	return key, nil
}
