package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/warranty-activator/internal/logic"
	"github.com/sweeney/warranty-activator/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		}
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"minutes": func(ms int64) string {
		return fmt.Sprintf("%dm %ds", ms/60000, (ms%60000)/1000)
	},
	"phaseClass": func(p logic.Phase) string {
		switch p {
		case logic.PhaseActivated:
			return "activated"
		case logic.PhaseSubmitting:
			return "submitting"
		default:
			return "tracking"
		}
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta http-equiv="refresh" content="10">
<title>Warranty Activator</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.activated { color: green; font-weight: bold; }
.submitting { color: orange; }
.tracking { color: #333; }
.on { color: green; font-weight: bold; }
.off { color: #888; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>Warranty Activator</h1>

<h2>Activation</h2>
<table>
<tr><th>Phase</th><td id="phase" class="{{phaseClass .Phase}}">{{.Phase}}</td></tr>
<tr><th>Status</th><td id="last-status">{{if .LastStatus}}{{.LastStatus}}{{else}}-{{end}}</td></tr>
<tr><th>Attempts</th><td>{{.Attempts}}</td></tr>
</table>

<h2>Usage</h2>
<table>
<tr><th>Display</th><td class="{{if .DisplayOn}}on{{else}}off{{end}}">{{if .DisplayOn}}ON{{else}}OFF{{end}}</td></tr>
<tr><th>Active time</th><td id="total">{{minutes .TotalMs}}</td></tr>
<tr><th>Persisted</th><td>{{minutes .Usage.AccumulatedMs}}</td></tr>
<tr><th>Threshold</th><td>{{minutes .Config.ThresholdMs}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{if .Config.Broker}}{{.Config.Broker}}{{else}}disabled{{end}}</td></tr>
<tr><th>Endpoint</th><td>{{.Config.Endpoint}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Storage</th><td>{{.Config.Storage}}</td></tr>
<tr><th>Display source</th><td>{{.Config.Display}}</td></tr>
<tr><th>Evaluate every</th><td>{{.Config.IntervalMs}}ms</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> · <a href="/metrics">Metrics</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) {
	// Template needs plain fields rather than methods with computed values.
	data := struct {
		status.Snapshot
		Uptime  time.Duration
		TotalMs int64
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
		TotalMs:  snap.TotalMs(),
	}
	indexTmpl.Execute(w, data)
}
