package main

import (
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"sync"
	"time"
)

type investigation struct {
	InvestigationID string `json:"investigation_id"`
	AlertID         string `json:"alert_id"`
	AlertName       string `json:"alert_name"`
	Service         string `json:"service"`
	Environment     string `json:"environment"`
	Severity        string `json:"severity"`
	CreatedAt       string `json:"created_at"`
}

var (
	services     = []string{"checkout", "payments", "inventory", "shipping"}
	environments = []string{"production", "staging"}
	severities   = []string{"info", "warning", "high", "critical"}
	alertNames   = []string{"HighErrorRate", "LatencySpike", "PodCrashLoop", "DiskPressure"}
)

// generator produces a synthetic stream of investigations. Roughly one in
// five records reuses a recent alert id so the dedup path gets exercised.
type generator struct {
	mu     sync.Mutex
	seq    int
	recent []string
}

func (g *generator) batch(n int) []investigation {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]investigation, 0, n)
	for i := 0; i < n; i++ {
		g.seq++
		alertID := fmt.Sprintf("alert-%04d", g.seq)
		if len(g.recent) > 0 && rand.Intn(5) == 0 {
			alertID = g.recent[rand.Intn(len(g.recent))]
		} else {
			g.recent = append(g.recent, alertID)
			if len(g.recent) > 32 {
				g.recent = g.recent[1:]
			}
		}
		out = append(out, investigation{
			InvestigationID: fmt.Sprintf("inv-%04d", g.seq),
			AlertID:         alertID,
			AlertName:       alertNames[rand.Intn(len(alertNames))],
			Service:         services[rand.Intn(len(services))],
			Environment:     environments[rand.Intn(len(environments))],
			Severity:        severities[rand.Intn(len(severities))],
			CreatedAt:       time.Now().UTC().Format(time.RFC3339),
		})
	}
	return out
}

func main() {
	gen := &generator{}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("/api/v1/investigations", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, map[string]any{
			"investigations": gen.batch(1 + rand.Intn(4)),
		})
	})

	logger := log.New(log.Writer(), "feed-mock ", log.LstdFlags|log.Lmicroseconds)
	srv := &http.Server{
		Addr:    ":9090",
		Handler: logRequests(logger, mux),
	}

	logger.Println("listening on :9090")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("server error: %v", err)
	}
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("encode error: %v", err)
	}
}

func logRequests(logger *log.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		logger.Printf("%s %s %d %s", r.Method, r.URL.Path, rw.status, time.Since(start))
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}
