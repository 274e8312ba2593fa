// Flaky is a simple test HTTP server used for exercising the circuit
// breaking proxy. It serves /orders and /health endpoints and can be told to
// fail a fraction of its requests.
//
// Usage:
//
//	go run flaky.go -port 8081 -fail-rate 0.3
//
// The failure rate can be changed at runtime:
//
//	curl -X POST 'localhost:8081/fail-rate?rate=1.0'
//
// A rate of 1.0 makes every request return 500, which trips the breaker in
// front of this server. Setting it back to 0 lets the breaker's half-open
// trial succeed and recover.
package main

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/big"
	"net/http"
	"strconv"
	"sync"
)

// newUUID generates a random v4 UUID per RFC 4122.
func newUUID() string {
	b := make([]byte, 16)
	_, err := rand.Read(b)
	if err != nil {
		return ""
	}
	// set version (4) and variant bits per RFC 4122
	b[6] = (b[6] & 0x0f) | 0x40
	b[8] = (b[8] & 0x3f) | 0x80
	// format as hex groups
	return fmt.Sprintf("%s-%s-%s-%s-%s",
		hex.EncodeToString(b[0:4]),
		hex.EncodeToString(b[4:6]),
		hex.EncodeToString(b[6:8]),
		hex.EncodeToString(b[8:10]),
		hex.EncodeToString(b[10:16]),
	)
}

// Order represents an order entity with unique identifier.
type Order struct {
	UUID string `json:"uuid"`
	Item string `json:"item"`
}

type flakiness struct {
	mu   sync.Mutex
	rate float64
}

func (f *flakiness) shouldFail() bool {
	f.mu.Lock()
	rate := f.rate
	f.mu.Unlock()

	if rate <= 0 {
		return false
	}
	if rate >= 1 {
		return true
	}
	n, err := rand.Int(rand.Reader, big.NewInt(1000))
	if err != nil {
		return false
	}
	return float64(n.Int64()) < rate*1000
}

func (f *flakiness) set(rate float64) {
	f.mu.Lock()
	f.rate = rate
	f.mu.Unlock()
}

func main() {
	port := flag.Int("port", 8081, "port to listen on")
	failRate := flag.Float64("fail-rate", 0, "fraction of requests to fail with 500 (0..1)")
	flag.Parse()

	flaky := &flakiness{rate: *failRate}

	mux := http.NewServeMux()
	mux.HandleFunc("/orders", func(w http.ResponseWriter, r *http.Request) {
		clientAddr := r.RemoteAddr
		log.Printf("request: method=%s path=%s from=%s", r.Method, r.URL.Path, clientAddr)

		if flaky.shouldFail() {
			http.Error(w, "simulated upstream failure", http.StatusInternalServerError)
			return
		}

		order := Order{
			UUID: newUUID(),
			Item: "widget",
		}

		resp := map[string]any{"order": order}
		b, _ := json.Marshal(resp)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write(b)
	})

	// runtime control over the failure rate
	mux.HandleFunc("/fail-rate", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		rate, err := strconv.ParseFloat(r.URL.Query().Get("rate"), 64)
		if err != nil || rate < 0 || rate > 1 {
			http.Error(w, "rate must be a number between 0 and 1", http.StatusBadRequest)
			return
		}
		flaky.set(rate)
		log.Printf("fail rate set to %.2f", rate)
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "fail rate set to %.2f\n", rate)
	})

	// health endpoint used by the proxy's health checker
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	addr := fmt.Sprintf(":%d", *port)
	log.Printf("starting flaky upstream on %s with fail rate %.2f", addr, *failRate)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}
