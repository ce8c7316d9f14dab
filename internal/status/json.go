package status

import (
	"encoding/json"
	"time"

	"github.com/sweeney/warranty-activator/internal/logic"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event            string     `json:"event,omitempty"`
	Reason           string     `json:"reason,omitempty"`
	Phase            string     `json:"phase"`
	Activated        bool       `json:"activated"`
	AccumulatedMs    int64      `json:"accumulated_ms"`
	TotalMs          int64      `json:"total_ms"`
	ActiveMinutes    int64      `json:"active_minutes"`
	RemainingMinutes int64      `json:"remaining_minutes"`
	SessionOpen      bool       `json:"session_open"`
	DisplayOn        bool       `json:"display_on"`
	Attempts         int        `json:"attempts"`
	LastStatus       string     `json:"last_status,omitempty"`
	UptimeSeconds    int64      `json:"uptime_seconds"`
	StartTime        string     `json:"start_time"`
	Timestamp        string     `json:"timestamp"`
	MQTT             MQTTStatus `json:"mqtt"`
	Config           ConfigJSON `json:"config"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	ThresholdMs int64  `json:"threshold_ms"`
	IntervalMs  int64  `json:"evaluate_interval_ms"`
	Endpoint    string `json:"endpoint"`
	Storage     string `json:"storage"`
	Display     string `json:"display"`
	Broker      string `json:"broker"`
	HTTPAddr    string `json:"http_addr"`
}

func buildInner(snap Snapshot) StatusInner {
	phase := snap.Phase
	if phase == "" {
		phase = logic.PhaseTracking
	}
	total := snap.TotalMs()

	var remaining int64
	if d := logic.Evaluate(total, snap.Config.ThresholdMs); !d.Crossed {
		remaining = d.Progress.RemainingMinutes
	}

	return StatusInner{
		Phase:            string(phase),
		Activated:        phase != logic.PhaseTracking,
		AccumulatedMs:    snap.Usage.AccumulatedMs,
		TotalMs:          total,
		ActiveMinutes:    logic.ActiveMinutes(total),
		RemainingMinutes: remaining,
		SessionOpen:      snap.Usage.SessionOpen,
		DisplayOn:        snap.DisplayOn,
		Attempts:         snap.Attempts,
		LastStatus:       snap.LastStatus,
		UptimeSeconds:    int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:        snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:        snap.Now.UTC().Format(time.RFC3339),
		MQTT:             MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Config: ConfigJSON{
			ThresholdMs: snap.Config.ThresholdMs,
			IntervalMs:  snap.Config.IntervalMs,
			Endpoint:    snap.Config.Endpoint,
			Storage:     snap.Config.Storage,
			Display:     snap.Config.Display,
			Broker:      snap.Config.Broker,
			HTTPAddr:    snap.Config.HTTPAddr,
		},
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
