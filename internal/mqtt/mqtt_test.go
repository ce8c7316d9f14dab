package mqtt

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestTopics(t *testing.T) {
	tests := []struct {
		prefix, status, system string
	}{
		{"", "device/warranty/status", "device/warranty/system"},
		{"device/warranty", "device/warranty/status", "device/warranty/system"},
		{"acme/panel-9/", "acme/panel-9/status", "acme/panel-9/system"},
	}
	for _, tt := range tests {
		if got := StatusTopic(tt.prefix); got != tt.status {
			t.Errorf("StatusTopic(%q): got %q, want %q", tt.prefix, got, tt.status)
		}
		if got := SystemTopic(tt.prefix); got != tt.system {
			t.Errorf("SystemTopic(%q): got %q, want %q", tt.prefix, got, tt.system)
		}
	}
}

func TestFormatStatusPayloadExactJSON(t *testing.T) {
	event := StatusEvent{
		Timestamp: time.Date(2026, 2, 10, 8, 30, 0, 0, time.UTC),
		Message:   "Active 3m • 2m left",
	}

	payload, err := FormatStatusPayload(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := `{"warranty":{"timestamp":"2026-02-10T08:30:00Z","status":"Active 3m • 2m left"}}`
	if string(payload) != expected {
		t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", string(payload), expected)
	}
}

func TestFormatStatusPayloadTimezoneConversion(t *testing.T) {
	loc := time.FixedZone("EST", -5*3600)
	event := StatusEvent{
		Timestamp: time.Date(2026, 1, 1, 7, 0, 0, 0, loc),
		Message:   "Warranty activated",
	}

	payload, _ := FormatStatusPayload(event)

	var parsed StatusPayload
	if err := json.Unmarshal(payload, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.Warranty.Timestamp != "2026-01-01T12:00:00Z" {
		t.Errorf("timestamp: got %s, want UTC", parsed.Warranty.Timestamp)
	}
}

func TestWillPayloadFormat(t *testing.T) {
	event := SystemEvent{
		Timestamp: time.Date(2026, 2, 10, 8, 30, 0, 0, time.UTC),
		Event:     EventOffline,
		Reason:    "MQTT_DISCONNECT",
	}

	payload, err := FormatSystemPayload(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := `{"system":{"timestamp":"2026-02-10T08:30:00Z","event":"OFFLINE","reason":"MQTT_DISCONNECT"}}`
	if string(payload) != expected {
		t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", string(payload), expected)
	}
}

func TestFormatSystemPayloadReconnectedOmitsReason(t *testing.T) {
	event := SystemEvent{
		Timestamp: time.Date(2026, 2, 10, 14, 30, 0, 0, time.UTC),
		Event:     EventReconnected,
	}

	payload, err := FormatSystemPayload(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := `{"system":{"timestamp":"2026-02-10T14:30:00Z","event":"RECONNECTED"}}`
	if string(payload) != expected {
		t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", string(payload), expected)
	}
}

func TestFormatSystemPayloadRawPayload(t *testing.T) {
	raw := []byte(`{"status":{"event":"STARTUP"}}`)
	payload, err := FormatSystemPayload(SystemEvent{Event: EventStartup, RawPayload: raw})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(payload) != string(raw) {
		t.Errorf("expected raw payload passthrough, got %s", payload)
	}
}

func TestFakePublisher(t *testing.T) {
	f := NewFakePublisher()

	if err := f.PublishStatus(StatusEvent{Timestamp: time.Now(), Message: "Activating warranty…"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := f.PublishSystem(SystemEvent{Timestamp: time.Now(), Event: EventStartup, Retained: true}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := f.Statuses(); len(got) != 1 || got[0] != "Activating warranty…" {
		t.Errorf("statuses: got %v", got)
	}
	if len(f.StatusPayloads()) != 1 {
		t.Errorf("expected 1 status payload, got %d", len(f.StatusPayloads()))
	}
	events := f.SystemEvents()
	if len(events) != 1 || events[0].Event != EventStartup || !events[0].Retained {
		t.Errorf("system events: got %+v", events)
	}
	if len(f.SystemPayloads()) != 1 {
		t.Errorf("expected 1 system payload, got %d", len(f.SystemPayloads()))
	}
}

func TestFakePublisherErrors(t *testing.T) {
	f := NewFakePublisher()
	f.PublishStatusError = errors.New("status down")
	f.PublishSystemError = errors.New("system down")

	if err := f.PublishStatus(StatusEvent{Message: "x"}); err == nil {
		t.Error("expected status error")
	}
	if err := f.PublishSystem(SystemEvent{Event: EventShutdown}); err == nil {
		t.Error("expected system error")
	}
	if len(f.Statuses()) != 0 || len(f.SystemEvents()) != 0 {
		t.Error("failed publishes should not be recorded")
	}
}

func TestFakePublisherCloseAndReset(t *testing.T) {
	f := NewFakePublisher()
	f.Connected = true
	f.PublishStatus(StatusEvent{Message: "x"})
	f.Close()

	if !f.Closed() {
		t.Error("expected Closed=true")
	}
	if !f.IsConnected() {
		t.Error("expected IsConnected=true")
	}

	f.Reset()
	if f.Closed() || f.IsConnected() || len(f.Statuses()) != 0 {
		t.Error("Reset should clear all state")
	}
}

func TestStatusReporterPublishes(t *testing.T) {
	f := NewFakePublisher()
	r := NewStatusReporter(f, zerolog.Nop())
	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return ts }

	r.Report("Active 1m • 4m left")
	r.Report("Activation failed, will retry")
	r.Close()

	got := f.Statuses()
	if len(got) != 2 || got[0] != "Active 1m • 4m left" || got[1] != "Activation failed, will retry" {
		t.Errorf("statuses: got %v", got)
	}
	var parsed StatusPayload
	if err := json.Unmarshal(f.StatusPayloads()[0], &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.Warranty.Timestamp != "2026-01-01T00:00:00Z" {
		t.Errorf("timestamp: got %s", parsed.Warranty.Timestamp)
	}
}

func TestStatusReporterSwallowsErrors(t *testing.T) {
	f := NewFakePublisher()
	f.PublishStatusError = errors.New("broker gone")
	r := NewStatusReporter(f, zerolog.Nop())

	// Must not panic.
	r.Report("Warranty activated")
	r.Close()
}

func TestStatusReporterReportAfterClose(t *testing.T) {
	f := NewFakePublisher()
	r := NewStatusReporter(f, zerolog.Nop())
	r.Close()
	r.Close()

	r.Report("Warranty activated")
	if got := f.Statuses(); len(got) != 0 {
		t.Errorf("statuses after close: got %v", got)
	}
}

// stalledPublisher blocks status publishes until released, like a client
// stuck writing to a half-open connection.
type stalledPublisher struct {
	*FakePublisher
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func newStalledPublisher() *stalledPublisher {
	return &stalledPublisher{
		FakePublisher: NewFakePublisher(),
		entered:       make(chan struct{}),
		release:       make(chan struct{}),
	}
}

func (p *stalledPublisher) PublishStatus(event StatusEvent) error {
	p.once.Do(func() { close(p.entered) })
	<-p.release
	return p.FakePublisher.PublishStatus(event)
}

func TestStatusReporterDoesNotBlockOnStalledBroker(t *testing.T) {
	p := newStalledPublisher()
	r := NewStatusReporter(p, zerolog.Nop())

	r.Report("m0")
	<-p.entered

	returned := make(chan struct{})
	go func() {
		defer close(returned)
		for i := 1; i <= DefaultReportQueue+3; i++ {
			r.Report(fmt.Sprintf("m%d", i))
		}
	}()
	select {
	case <-returned:
	case <-time.After(2 * time.Second):
		t.Fatal("Report blocked while the publisher was stalled")
	}

	close(p.release)
	r.Close()

	got := p.Statuses()
	if len(got) != DefaultReportQueue+1 {
		t.Fatalf("published %d statuses, want %d: %v", len(got), DefaultReportQueue+1, got)
	}
	if got[0] != "m0" {
		t.Errorf("first: got %q, want m0", got[0])
	}
	// m1..m3 were the oldest queued messages when the queue overflowed.
	if got[1] != "m4" {
		t.Errorf("second: got %q, want m4", got[1])
	}
	if last := got[len(got)-1]; last != fmt.Sprintf("m%d", DefaultReportQueue+3) {
		t.Errorf("last: got %q", last)
	}
}
