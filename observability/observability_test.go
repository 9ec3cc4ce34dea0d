package observability

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/wricardo/mcp-training/squarerelay/game/room"
)

func TestRegisterMetricsAndRecordersAreSafe(t *testing.T) {
	RegisterMetrics()
	RegisterMetrics()

	RecordHTTPRequest("GET", "/api/health", 200, 12*time.Millisecond)
}

func TestRelayMetrics(t *testing.T) {
	m := NewRelayMetrics()

	before := testutil.ToFloat64(activeConnections.WithLabelValues("metrics-room"))
	m.Connected("metrics-room")
	m.Connected("metrics-room")
	m.Disconnected("metrics-room")
	assert.Equal(t, before+1, testutil.ToFloat64(activeConnections.WithLabelValues("metrics-room")))

	m.Updated("metrics-room")
	assert.Equal(t, float64(1), testutil.ToFloat64(movementUpdates.WithLabelValues("metrics-room")))

	sent := testutil.ToFloat64(deliveries.WithLabelValues("metrics-event", "sent"))
	m.Delivered("metrics-event", room.Delivery{Sent: 3, Failed: 1})
	assert.Equal(t, sent+3, testutil.ToFloat64(deliveries.WithLabelValues("metrics-event", "sent")))
	assert.Equal(t, float64(1), testutil.ToFloat64(deliveries.WithLabelValues("metrics-event", "failed")))
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "test", true)

	router := mux.NewRouter()
	router.Use(RequestLogger(logger), RequestMetrics())
	router.HandleFunc("/things/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/things/42", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
	out := buf.String()
	assert.Contains(t, out, "http_request")
	assert.Contains(t, out, "/things/{id}")
	assert.Contains(t, out, "418")
}
