package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/gpio-sequencer/internal/status"
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
	"level": status.LevelString,
	"deref": func(f *float64) float64 { return *f },
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>GPIO Sequencer</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.on { color: green; font-weight: bold; }
.off { color: #888; }
.fault { color: red; font-weight: bold; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>GPIO Sequencer: {{.Config.Program}}</h1>

<h2>Engine</h2>
<table>
<tr><th>Running</th><td>{{if .Running}}yes{{else}}no{{end}}</td></tr>
{{if .Fault}}<tr><th>Fault</th><td class="fault">{{.Fault}}</td></tr>{{end}}
<tr><th>Counter</th><td id="counter">{{.Counter}}</td></tr>
<tr><th>Cycles</th><td>{{.Cycles}}</td></tr>
{{if .HasReading}}<tr><th>Reading</th><td id="reading">{{if eq .Reading.Kind.String "digital"}}{{if .Reading.Level}}HIGH{{else}}LOW{{end}}{{else}}{{printf "%.2f" .Reading.Value}} °C{{end}}</td></tr>{{end}}
{{if .LastEvent}}<tr><th>Last event</th><td>{{.LastEvent.Type}} at {{.LastEvent.Timestamp.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>{{end}}
</table>

<h2>Lines</h2>
<table>
{{range .Lines}}<tr><th>Line {{.Index}} (GPIO {{.Pin}})</th><td class="{{if .State}}on{{else}}off{{end}}">{{level .State}}</td></tr>
{{end}}</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{if .Config.Broker}}{{.Config.Broker}}{{else}}disabled{{end}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Driver</th><td>{{.Config.Driver}}</td></tr>
<tr><th>Poll</th><td>{{.Config.PollMs}}ms</td></tr>
{{if .Config.Threshold}}<tr><th>Threshold</th><td>{{printf "%.2f" (deref .Config.Threshold)}} °C</td></tr>{{end}}
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime time.Duration
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
	}
	indexTmpl.Execute(w, data)
}
