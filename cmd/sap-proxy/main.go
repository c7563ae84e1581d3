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

// Package main provides the entry point for the SAP proxy.
//
// The proxy sits in front of an opaque vector-search backend. Every vector a
// client writes is shuffled-and-perturbed (SAP) before it ever leaves the
// proxy, so the backend only ever sees distance-preserving noise instead of
// plaintext embeddings; queries are overfetched in cipher space and
// reranked in plaintext locally before being truncated back down to the
// caller's requested topK.
//
// This file wires together the three moving pieces:
//  1. sapconfig.Store, the atomically-swapped (upstream, beta) snapshot that
//     POST /blyss/setup updates at runtime.
//  2. upstream.Client, the HTTP client used to reach the backend.
//  3. proxyapi.Server, which implements the public HTTP surface.
//
// and manages the http.Server lifecycle directly, the same separation of
// concerns as cmd/ratelimiter-api/main.go in the rate limiter demo this
// proxy is descended from.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sapproxy/internal/proxyapi"
	"sapproxy/internal/sapconfig"
	"sapproxy/internal/telemetry"
	"sapproxy/internal/upstream"
)

func main() {
	httpAddr := flag.String("http_addr", ":8080", "HTTP listen address for the proxy (e.g., :8080)")
	upstreamURL := flag.String("upstream_url", "", "Data-plane upstream base URL (required; e.g., https://my-index.svc.pinecone.io)")
	controlPlaneURL := flag.String("control_plane_url", "https://api.pinecone.io", "Control-plane base URL, used for passthrough paths under \"databases\"")
	beta := flag.Float64("beta", 0.0, "Initial SAP noise magnitude (0 disables perturbation, permutation only)")
	upstreamTimeout := flag.Duration("upstream_timeout", 30*time.Second, "Timeout for each request forwarded to the upstream backend")
	metricsAddr := flag.String("metrics_addr", "", "If non-empty, expose Prometheus /metrics on this separate address (e.g., :9090)")
	shutdownTimeout := flag.Duration("shutdown_timeout", 5*time.Second, "How long to wait for in-flight requests to finish on shutdown")
	flag.Parse()

	if *upstreamURL == "" {
		log.Fatal("sap-proxy: -upstream_url is required")
	}

	cfg := sapconfig.New(*upstreamURL, *controlPlaneURL, float32(*beta))
	client := upstream.New(*upstreamTimeout)
	server := proxyapi.NewServer(cfg, client, log.Default())

	mux := http.NewServeMux()
	server.RegisterRoutes(mux)
	httpServer := &http.Server{
		Addr:    *httpAddr,
		Handler: mux,
	}

	if *metricsAddr != "" {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", telemetry.Handler())
		metricsServer := &http.Server{Addr: *metricsAddr, Handler: metricsMux}
		go func() {
			fmt.Printf("sap-proxy metrics listening on %s\n", *metricsAddr)
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("metrics server stopped: %v", err)
			}
		}()
	}

	go func() {
		fmt.Printf("sap-proxy listening on %s, forwarding to %s\n", *httpAddr, *upstreamURL)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("could not listen on %s: %v", *httpAddr, err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	fmt.Println("\nshutting down sap-proxy...")
	ctx, cancel := context.WithTimeout(context.Background(), *shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Fatalf("server shutdown failed: %v", err)
	}
	fmt.Println("sap-proxy stopped.")
}
