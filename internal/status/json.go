package status

import (
	"encoding/json"
	"time"

	"github.com/sweeney/gpio-sequencer/internal/engine"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	RunID         string       `json:"run_id,omitempty"`
	Program       string       `json:"program"`
	Running       bool         `json:"running"`
	Fault         string       `json:"fault,omitempty"`
	Lines         []LineJSON   `json:"lines"`
	Counter       uint64       `json:"counter"`
	Cycles        uint64       `json:"cycles"`
	Reading       *ReadingJSON `json:"reading,omitempty"`
	LastEvent     *EventJSON   `json:"last_event,omitempty"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Network       *NetworkJSON `json:"network,omitempty"`
	Config        ConfigJSON   `json:"config"`
}

// LineJSON is one output line.
type LineJSON struct {
	Index int    `json:"index"`
	Pin   int    `json:"pin"`
	State string `json:"state"`
}

// ReadingJSON is the last acquired input value.
type ReadingJSON struct {
	Kind  string   `json:"kind"`
	Level *string  `json:"level,omitempty"`
	Value *float64 `json:"value,omitempty"`
}

// EventJSON is the last reported engine event.
type EventJSON struct {
	Type      string  `json:"type"`
	Timestamp string  `json:"timestamp"`
	Count     uint64  `json:"count"`
	Value     float64 `json:"value"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of the run config.
type ConfigJSON struct {
	Driver      string   `json:"driver"`
	Outputs     []int    `json:"outputs"`
	PollMs      int64    `json:"poll_ms"`
	Threshold   *float64 `json:"threshold,omitempty"`
	Broker      string   `json:"broker"`
	TopicPrefix string   `json:"topic_prefix,omitempty"`
	HTTPAddr    string   `json:"http_addr"`
}

// LevelString renders a line state.
func LevelString(on bool) string {
	if on {
		return "ON"
	}
	return "OFF"
}

func buildInner(snap Snapshot) StatusInner {
	lines := make([]LineJSON, len(snap.Lines))
	for i, l := range snap.Lines {
		lines[i] = LineJSON{Index: l.Index, Pin: l.Pin, State: LevelString(l.State)}
	}

	inner := StatusInner{
		RunID:         snap.Config.RunID,
		Program:       snap.Config.Program,
		Running:       snap.Running,
		Fault:         snap.Fault,
		Lines:         lines,
		Counter:       snap.Counter,
		Cycles:        snap.Cycles,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Config: ConfigJSON{
			Driver:      snap.Config.Driver,
			Outputs:     snap.Config.Outputs,
			PollMs:      snap.Config.PollMs,
			Threshold:   snap.Config.Threshold,
			Broker:      snap.Config.Broker,
			TopicPrefix: snap.Config.TopicPrefix,
			HTTPAddr:    snap.Config.HTTPAddr,
		},
	}

	if snap.HasReading {
		r := &ReadingJSON{Kind: snap.Reading.Kind.String()}
		if snap.Reading.Kind == engine.InputDigital {
			lvl := "LOW"
			if snap.Reading.Level {
				lvl = "HIGH"
			}
			r.Level = &lvl
		} else {
			v := snap.Reading.Value
			r.Value = &v
		}
		inner.Reading = r
	}

	if e := snap.LastEvent; e != nil {
		inner.LastEvent = &EventJSON{
			Type:      string(e.Type),
			Timestamp: e.Timestamp.UTC().Format(time.RFC3339),
			Count:     e.Count,
			Value:     e.Value,
		}
	}

	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
	return inner
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
