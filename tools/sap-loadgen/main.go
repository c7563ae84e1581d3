// sap-loadgen is a tiny, dependency-free HTTP load generator tailored to the
// SAP proxy. Like tools/http-loadgen it reuses HTTP connections (keep-alive)
// and supports concurrency, but drives the proxy's actual vector endpoints
// instead of a single GET parameter. Each run uses one mode under one data
// key: -mode=upsert sends single-vector upserts of random dense vectors, and
// -mode=query sends queries with freshly drawn random vectors.
//
// Usage examples:
//
//	sap-loadgen -base=http://127.0.0.1:8080 -mode=upsert -n=2000 -c=16 -dim=512
//	sap-loadgen -base=http://127.0.0.1:8080 -mode=query -n=5000 -c=16 -dim=512 -topk=10
package main

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	mrand "math/rand/v2"
	"net/http"
	"os"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

type modeType string

const (
	modeUpsert modeType = "upsert"
	modeQuery  modeType = "query"
)

func randomVector(d int, rng *mrand.Rand) []float32 {
	v := make([]float32, d)
	for i := range v {
		v[i] = float32(rng.NormFloat64())
	}
	return v
}

func randomDataKey() string {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		panic(err)
	}
	return base64.StdEncoding.EncodeToString(key)
}

func main() {
	var (
		base      = flag.String("base", "http://127.0.0.1:8080", "Proxy base URL, e.g. http://127.0.0.1:8080")
		namespace = flag.String("namespace", "loadgen", "Namespace to upsert/query against")
		modeS     = flag.String("mode", string(modeUpsert), "Mode: upsert|query")
		dataKey   = flag.String("data_key", "", "Base64 data key; a random 32-byte key is generated if empty")
		dim       = flag.Int("dim", 512, "Vector dimensionality")
		topK      = flag.Int("topk", 10, "topK for query mode")
		N         = flag.Int("n", 2000, "Total requests to send")
		conc      = flag.Int("c", 8, "Number of concurrent workers")
		timeout   = flag.Duration("timeout", 60*time.Second, "Overall timeout for the loadgen run")
		reqTimeout = flag.Duration("req_timeout", 10*time.Second, "Per-request timeout")
	)
	flag.Parse()

	m := modeType(strings.ToLower(*modeS))
	if m != modeUpsert && m != modeQuery {
		fmt.Fprintf(os.Stderr, "unknown -mode=%s (want upsert|query)\n", *modeS)
		os.Exit(2)
	}
	if *N <= 0 || *conc <= 0 {
		fmt.Fprintln(os.Stderr, "-n and -c must be > 0")
		os.Exit(2)
	}

	key := *dataKey
	if key == "" {
		key = randomDataKey()
		fmt.Printf("sap-loadgen: generated data key %s\n", key)
	}

	baseURL := strings.TrimRight(*base, "/")
	tr := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        256,
		MaxIdleConnsPerHost: 256,
		IdleConnTimeout:     30 * time.Second,
	}
	client := &http.Client{Transport: tr, Timeout: *reqTimeout}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	start := time.Now()
	var done, failed int64

	worker := func(id, count int) {
		defer func() {}()
		rng := mrand.New(mrand.NewPCG(uint64(id)+1, 0xdecaf))
		sent := 0
		defer func() { atomic.AddInt64(&done, int64(sent)) }()
		for i := 0; i < count; i++ {
			select {
			case <-ctx.Done():
				return
			default:
			}
			var (
				body []byte
				path string
			)
			switch m {
			case modeUpsert:
				vec := randomVector(*dim, rng)
				upsertBody := map[string]any{
					"namespace": *namespace,
					"vectors": []map[string]any{
						{"id": fmt.Sprintf("lg-%d-%d", id, i), "values": vec},
					},
				}
				body, _ = json.Marshal(upsertBody)
				path = "/vectors/upsert"
			case modeQuery:
				vec := randomVector(*dim, rng)
				queryBody := map[string]any{
					"namespace": *namespace,
					"values":    vec,
					"topK":      *topK,
				}
				body, _ = json.Marshal(queryBody)
				path = "/query"
			}

			req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+path, bytes.NewReader(body))
			if err != nil {
				atomic.AddInt64(&failed, 1)
				continue
			}
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("X-Data-Key", key)
			resp, err := client.Do(req)
			if err != nil {
				atomic.AddInt64(&failed, 1)
				time.Sleep(200 * time.Microsecond)
				continue
			}
			_, _ = io.Copy(io.Discard, resp.Body)
			_ = resp.Body.Close()
			if resp.StatusCode >= 400 {
				atomic.AddInt64(&failed, 1)
			}
			sent++
		}
	}

	per := *N / *conc
	rem := *N - per**conc
	var wg sync.WaitGroup
	wg.Add(*conc)
	for w := 0; w < *conc; w++ {
		count := per
		if w == *conc-1 {
			count += rem
		}
		go func(id, n int) {
			defer wg.Done()
			worker(id, n)
		}(w, count)
	}
	wg.Wait()

	elapsed := time.Since(start)
	if elapsed <= 0 {
		elapsed = time.Millisecond
	}
	ops := float64(*N) / elapsed.Seconds()
	fmt.Printf("sap-loadgen: mode=%s N=%d c=%d go=%d Duration=%s Throughput=%.0f req/s failed=%d\n",
		m, *N, *conc, runtime.GOMAXPROCS(0), elapsed.Truncate(time.Millisecond), ops, atomic.LoadInt64(&failed))
}
