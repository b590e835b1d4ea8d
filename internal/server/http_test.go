package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coffersTech/nanoflow/internal/engine"
	"github.com/coffersTech/nanoflow/internal/pkg/flowql"
	"github.com/coffersTech/nanoflow/internal/record"
)

func testServer(t *testing.T, mailboxCap int) (*IngestServer, *engine.Mailbox, *engine.CollectorSink) {
	t.Helper()
	p := engine.New("ingest-test", zerolog.Nop())
	mb := engine.NewMailbox(mailboxCap)
	sink := &engine.CollectorSink{}

	q, err := flowql.Parse("Events")
	require.NoError(t, err)
	plan, err := flowql.Compile(q, nil)
	require.NoError(t, err)

	sn, err := p.BuildNode(engine.StageConfig{Name: "intake", Source: mb})
	require.NoError(t, err)
	tn, err := p.BuildNode(engine.StageConfig{Name: "pass", Stage: engine.NewPlanStage(plan)})
	require.NoError(t, err)
	kn, err := p.BuildNode(engine.StageConfig{Name: "out", Sink: sink})
	require.NoError(t, err)
	_, err = p.Connect(sn, tn, 8)
	require.NoError(t, err)
	_, err = p.Connect(tn, kn, 8)
	require.NoError(t, err)

	return NewIngestServer(p, mb, zerolog.Nop()), mb, sink
}

func postIngest(s *IngestServer, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/ingest", strings.NewReader(body))
	w := httptest.NewRecorder()
	s.handleIngest(w, req)
	return w
}

func TestIngestSingleObject(t *testing.T) {
	s, mb, _ := testServer(t, 8)

	w := postIngest(s, `{"status": "OK", "value": 42, "slow": false}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]int
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp["accepted"])
	require.Equal(t, 1, mb.Len())

	rec, ok := mb.Pull()
	require.True(t, ok)
	v, _ := rec.Get("status")
	assert.Equal(t, "OK", v.Str())
	v, _ = rec.Get("value")
	assert.Equal(t, int64(42), v.Int())
	v, _ = rec.Get("slow")
	assert.False(t, v.Bool())
}

func TestIngestBatch(t *testing.T) {
	s, mb, _ := testServer(t, 8)

	w := postIngest(s, `[{"a": 1}, {"a": 2}, {"a": 3}]`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 3, mb.Len())
}

func TestIngestRejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", "{nope"},
		{"scalar payload", `42`},
		{"float value", `{"v": 1.5}`},
		{"null value", `{"v": null}`},
		{"nested object", `{"v": {"x": 1}}`},
		{"array value", `{"v": [1]}`},
		{"array of scalars", `[1, 2]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, mb, _ := testServer(t, 8)
			w := postIngest(s, tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, 0, mb.Len(), "nothing enqueued on rejection")
		})
	}
}

func TestMethodNotAllowed(t *testing.T) {
	s, _, _ := testServer(t, 8)

	tests := []struct {
		name    string
		method  string
		path    string
		handler http.HandlerFunc
	}{
		{"ingest rejects GET", http.MethodGet, "/api/ingest", s.handleIngest},
		{"stats rejects POST", http.MethodPost, "/api/stats", s.handleStats},
		{"events rejects POST", http.MethodPost, "/api/events", s.handleEvents},
		{"events rejects DELETE", http.MethodDelete, "/api/events", s.handleEvents},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			w := httptest.NewRecorder()
			tt.handler(w, req)
			assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
		})
	}
}

func TestIngestBackpressure(t *testing.T) {
	s, _, _ := testServer(t, 2)

	w := postIngest(s, `[{"a": 1}, {"a": 2}, {"a": 3}]`)
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))

	var resp struct {
		Accepted int    `json:"accepted"`
		Error    string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Accepted, "partial batch acceptance is reported")
	assert.NotEmpty(t, resp.Error)
}

func TestIngestAfterClose(t *testing.T) {
	s, mb, _ := testServer(t, 8)
	mb.Close()

	w := postIngest(s, `{"a": 1}`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestStatsEndpoint(t *testing.T) {
	s, mb, sink := testServer(t, 8)
	require.NoError(t, mb.Offer(record.FromMap(map[string]record.Value{"a": record.Int(1)})))
	mb.Close()
	require.NoError(t, s.pipe.Run(context.Background()))
	require.Len(t, sink.Records, 1)

	req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	w := httptest.NewRecorder()
	s.handleStats(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ingest-test", resp["pipeline"])
	assert.Equal(t, float64(1), resp["delivered"])
	assert.Equal(t, float64(0), resp["intake_depth"])
	assert.NotEmpty(t, resp["run_id"])
}

func TestEventsEndpoint(t *testing.T) {
	s, mb, _ := testServer(t, 8)

	// Move one record into an internal channel, then cancel: the in-flight
	// loss lands on the event stream.
	require.NoError(t, mb.Offer(record.New()))
	require.True(t, s.pipe.Step())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.Error(t, s.pipe.Run(ctx))

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	w := httptest.NewRecorder()
	s.handleEvents(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var events []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &events))
	require.Len(t, events, 1)
	assert.Equal(t, "cancelled", events[0]["kind"])
	assert.Equal(t, float64(1), events[0]["count"])

	// A second drain is empty.
	w = httptest.NewRecorder()
	s.handleEvents(w, req)
	events = nil
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &events))
	assert.Empty(t, events)
}
