package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/valyala/fastjson"

	"github.com/coffersTech/nanoflow/internal/engine"
	"github.com/coffersTech/nanoflow/internal/record"
)

// IngestServer is the HTTP edge of a pipeline: it parses JSON record
// batches and offers them to the pipeline's ingress mailbox. Backpressure
// is surfaced to clients as 429 responses, never absorbed by buffering.
type IngestServer struct {
	pipe    *engine.Pipeline
	mailbox *engine.Mailbox
	srv     *http.Server
	parser  fastjson.ParserPool
	log     zerolog.Logger

	ingestCounter int64 // Monotonic counter for accepted records
	ingestRate    int64 // Records per second (updated periodically)
}

// NewIngestServer creates the HTTP edge for the given pipeline and mailbox.
func NewIngestServer(pipe *engine.Pipeline, mailbox *engine.Mailbox, log zerolog.Logger) *IngestServer {
	return &IngestServer{
		pipe:    pipe,
		mailbox: mailbox,
		log:     log.With().Str("component", "ingest").Logger(),
	}
}

// Start runs the HTTP server. Blocks until Shutdown.
func (s *IngestServer) Start(addr string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/ingest", s.handleIngest)
	mux.HandleFunc("/api/stats", s.handleStats)
	mux.HandleFunc("/api/events", s.handleEvents)

	s.srv = &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *IngestServer) Shutdown(ctx context.Context) error {
	if s.srv != nil {
		return s.srv.Shutdown(ctx)
	}
	return nil
}

// StartRateTicker starts a background ticker that folds the accepted
// counter into a records/sec rate. Stops when ctx is cancelled.
func (s *IngestServer) StartRateTicker(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				count := atomic.SwapInt64(&s.ingestCounter, 0)
				atomic.StoreInt64(&s.ingestRate, int64(float64(count)/interval.Seconds()))
			}
		}
	}()
}

// handleIngest accepts a JSON record object or array of objects.
// Attribute values must be booleans, integers or strings.
func (s *IngestServer) handleIngest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read body", http.StatusBadRequest)
		return
	}

	parser := s.parser.Get()
	defer s.parser.Put(parser)

	v, err := parser.ParseBytes(body)
	if err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	var items []*fastjson.Value
	switch v.Type() {
	case fastjson.TypeArray:
		items, _ = v.Array()
	case fastjson.TypeObject:
		items = []*fastjson.Value{v}
	default:
		http.Error(w, "Expected object or array", http.StatusBadRequest)
		return
	}

	accepted := 0
	for _, item := range items {
		rec, err := recordFromJSON(item)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := s.mailbox.Offer(rec); err != nil {
			if errors.Is(err, engine.ErrFull) {
				// Bounded intake: the client must retry later.
				w.Header().Set("Retry-After", "1")
				s.writeJSON(w, http.StatusTooManyRequests, map[string]any{
					"accepted": accepted,
					"error":    "pipeline intake full",
				})
				return
			}
			http.Error(w, "Pipeline stopped", http.StatusServiceUnavailable)
			return
		}
		accepted++
	}

	atomic.AddInt64(&s.ingestCounter, int64(accepted))
	s.writeJSON(w, http.StatusOK, map[string]any{"accepted": accepted})
}

func (s *IngestServer) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	stats := s.pipe.Stats()
	s.writeJSON(w, http.StatusOK, map[string]any{
		"pipeline":            s.pipe.Name(),
		"run_id":              s.pipe.RunID().String(),
		"processed":           stats.Processed,
		"filtered":            stats.Filtered,
		"eval_errors":         stats.EvalErrors,
		"delivered":           stats.Delivered,
		"cancelled_in_flight": stats.CancelledInFlight,
		"intake_depth":        s.mailbox.Len(),
		"ingest_rate":         atomic.LoadInt64(&s.ingestRate),
	})
}

// handleEvents drains the buffered error/drop events.
func (s *IngestServer) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	type eventJSON struct {
		Node  string `json:"node,omitempty"`
		Kind  string `json:"kind"`
		Error string `json:"error,omitempty"`
		Count int    `json:"count,omitempty"`
	}
	events := s.pipe.Events().Drain()
	out := make([]eventJSON, 0, len(events))
	for _, ev := range events {
		e := eventJSON{Node: ev.Node, Kind: ev.Kind.String(), Count: ev.Count}
		if ev.Err != nil {
			e.Error = ev.Err.Error()
		}
		out = append(out, e)
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *IngestServer) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error().Err(err).Msg("failed to encode response")
	}
}

// recordFromJSON converts one JSON object into a record. Numbers must be
// integers; nested objects, arrays and null are rejected.
func recordFromJSON(v *fastjson.Value) (*record.Record, error) {
	obj, err := v.Object()
	if err != nil {
		return nil, errors.New("record must be a JSON object")
	}

	rec := record.New()
	obj.Visit(func(key []byte, val *fastjson.Value) {
		if err != nil {
			return
		}
		name := string(key)
		switch val.Type() {
		case fastjson.TypeTrue:
			rec.Set(name, record.Bool(true))
		case fastjson.TypeFalse:
			rec.Set(name, record.Bool(false))
		case fastjson.TypeNumber:
			n, convErr := val.Int64()
			if convErr != nil {
				err = errors.New("attribute " + name + ": number must be an integer")
				return
			}
			rec.Set(name, record.Int(n))
		case fastjson.TypeString:
			b, _ := val.StringBytes()
			rec.Set(name, record.String(string(b)))
		default:
			err = errors.New("attribute " + name + ": unsupported value type")
		}
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}
