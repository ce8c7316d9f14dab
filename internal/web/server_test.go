package web

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sweeney/warranty-activator/internal/logic"
	"github.com/sweeney/warranty-activator/internal/metrics"
	"github.com/sweeney/warranty-activator/internal/status"
)

var start = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T) (*httptest.Server, *status.Tracker, *metrics.Metrics) {
	t.Helper()
	cfg := status.Config{
		ThresholdMs: 300000,
		IntervalMs:  10000,
		Endpoint:    "https://activation.example.com/api/activate",
		Storage:     "bolt",
		Display:     "drm",
		Broker:      "tcp://192.168.1.200:1883",
		HTTPAddr:    ":8080",
	}
	tr := status.NewTracker(start, cfg)
	tr.SetClock(func() time.Time { return start.Add(10 * time.Minute) })
	m := metrics.New()
	srv := New(":0", tr, m.Handler())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, tr, m
}

func getJSON(t *testing.T, url string) status.StatusJSON {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()

	var sj status.StatusJSON
	if err := json.NewDecoder(resp.Body).Decode(&sj); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	return sj
}

func TestJSONEndpoint(t *testing.T) {
	ts, tr, _ := newTestServer(t)
	tr.Update(logic.PhaseTracking, logic.Usage{AccumulatedMs: 60000, SessionOpen: true, SessionSince: start.Add(9 * time.Minute)}, true)
	tr.Report("Active 2m • 3m left")
	tr.SetMQTTConnected(true)

	resp, err := http.Get(ts.URL + "/index.json")
	if err != nil {
		t.Fatalf("GET /index.json: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: got %q, want application/json", ct)
	}

	var sj status.StatusJSON
	if err := json.NewDecoder(resp.Body).Decode(&sj); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}

	if sj.Status.Phase != "TRACKING" {
		t.Errorf("Phase: got %q, want TRACKING", sj.Status.Phase)
	}
	if sj.Status.TotalMs != 120000 {
		t.Errorf("TotalMs: got %d, want 120000", sj.Status.TotalMs)
	}
	if sj.Status.LastStatus != "Active 2m • 3m left" {
		t.Errorf("LastStatus: got %q", sj.Status.LastStatus)
	}
	if !sj.Status.MQTT.Connected {
		t.Error("expected MQTT.Connected=true")
	}
	if sj.Status.MQTT.Broker != "tcp://192.168.1.200:1883" {
		t.Errorf("MQTT.Broker: got %q", sj.Status.MQTT.Broker)
	}
	if sj.Status.Config.Endpoint != "https://activation.example.com/api/activate" {
		t.Errorf("Config.Endpoint: got %q", sj.Status.Config.Endpoint)
	}
	if sj.Status.UptimeSeconds != 600 {
		t.Errorf("UptimeSeconds: got %d, want 600", sj.Status.UptimeSeconds)
	}
}

func TestHTMLEndpointRoot(t *testing.T) {
	ts, tr, _ := newTestServer(t)
	tr.Update(logic.PhaseActivated, logic.Usage{AccumulatedMs: 305000}, false)
	tr.Report(logic.StatusActivated)

	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("GET /: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	ct := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type: got %q, want text/html", ct)
	}

	body, _ := io.ReadAll(resp.Body)
	for _, want := range []string{"ACTIVATED", "Warranty activated", "5m 5s", "10m 0s"} {
		if !strings.Contains(string(body), want) {
			t.Errorf("body missing %q", want)
		}
	}
}

func TestHTMLEndpointIndexHTML(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/index.html")
	if err != nil {
		t.Fatalf("GET /index.html: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
}

func TestNotFoundForUnknownPath(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/nonexistent")
	if err != nil {
		t.Fatalf("GET /nonexistent: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 404 {
		t.Errorf("status: got %d, want 404", resp.StatusCode)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	ts, _, m := newTestServer(t)
	m.ObserveUsage(42000, 43000)

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "warranty_accumulated_ms 42000") {
		t.Error("metrics output missing warranty_accumulated_ms")
	}
}

func TestMetricsDisabled(t *testing.T) {
	tr := status.NewTracker(start, status.Config{})
	ts := httptest.NewServer(New(":0", tr, nil).Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	resp.Body.Close()
	// Falls through to the index handler, which rejects unknown paths.
	if resp.StatusCode != 404 {
		t.Errorf("status: got %d, want 404", resp.StatusCode)
	}
}

func TestHealthEndpoint(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
}

func TestStateChangesReflectedInResponse(t *testing.T) {
	ts, tr, _ := newTestServer(t)

	sj1 := getJSON(t, ts.URL+"/index.json")
	if sj1.Status.Activated {
		t.Error("expected Activated=false initially")
	}

	tr.Update(logic.PhaseSubmitting, logic.Usage{AccumulatedMs: 300000}, false)
	tr.AddAttempt()
	tr.SetMQTTConnected(true)

	sj2 := getJSON(t, ts.URL+"/index.json")
	if sj2.Status.Phase != "SUBMITTING" {
		t.Errorf("Phase: got %q, want SUBMITTING", sj2.Status.Phase)
	}
	if sj2.Status.Attempts != 1 {
		t.Errorf("Attempts: got %d, want 1", sj2.Status.Attempts)
	}
	if !sj2.Status.MQTT.Connected {
		t.Error("expected MQTT connected after update")
	}
}
