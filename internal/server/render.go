package server

import (
	"bytes"
	"html"
	"html/template"
	"regexp"
	"strconv"
	"strings"

	"preclear_disk/internal/app"
	"preclear_disk/internal/preclear"
)

var rowsTemplate = template.Must(template.New("rows").Parse(
	`{{range .}}<tr class='{{.Class}}'>` +
		`<td><img src='/webGui/images/{{.Icon}}'> {{.Name}}</td>` +
		`<td><span class='toggle-hdd' hdd='{{.Name}}'><i class='glyphicon glyphicon-hdd hdd'></i>` +
		`{{if .HasPartitions}}<span style='margin:4px;'></span>{{else}}<i class='glyphicon glyphicon-plus-sign glyphicon-append'></i>{{end}}` +
		`{{.Serial}}</span></td>` +
		`<td>{{.Temperature}}</td>` +
		`<td><span>{{.Size}}</span></td>` +
		`<td>{{if not .ScriptPresent}}Script not present{{else}}{{template "status" .}}{{end}}</td>` +
		`</tr>{{else}}<tr><td colspan='12' style='text-align:center;font-weight:bold;'>No unassigned disks available.</td></tr>{{end}}` +
		`{{define "status"}}` +
		`{{if .Message}}<span{{if .Running}} style='color:#478406;'{{end}}>{{.Message}}</span>{{end}}` +
		`{{range .Actions}}` +
		`{{if eq .Kind "start"}}<a class='exec' onclick='start_preclear({{.Device}})'>Start Preclear</a>{{end}}` +
		`{{if eq .Kind "preview"}}<a class='exec' onclick='openPreclear({{.Device}});' title='Preview'><i class='glyphicon glyphicon-eye-open'></i></a>{{end}}` +
		`{{if eq .Kind "stop"}}<a class='exec' title='Stop Preclear' style='color:#CC0000;' onclick='stop_preclear({{.Serial}},{{.Device}});'> <i class='glyphicon glyphicon-remove hdd'></i></a>{{end}}` +
		`{{if eq .Kind "clear_stats"}}<a class='exec' title='Clear stats' style='color:#CC0000;font-weight:bold;' onclick='clear_preclear({{.Device}});'> <i class='glyphicon glyphicon-remove hdd'></i></a>{{end}}` +
		`{{if eq .Kind "clear_session"}}<a class='exec' title='Clear' style='color:#CC0000;' onclick='remove_session({{.Device}});'> <i class='glyphicon glyphicon-remove hdd'></i></a>{{end}}` +
		`{{end}}` +
		`{{end}}`))

var previewTemplate = template.Must(template.New("preview").Parse(
	`{{if .Alive}}<pre>{{.Output}}</pre>` +
		`<script>document.title='Preclear for disk /dev/{{.Device}}';setTimeout(function(){location.reload();},5000);</script>` +
		`{{else}}<script>window.close();</script>{{end}}`))

var newlineRunRe = regexp.MustCompile(`\n+`)

type rowView struct {
	Class         string
	Icon          string
	Name          string
	Serial        string
	Temperature   string
	Size          string
	HasPartitions bool
	ScriptPresent bool
	Running       bool
	Message       string
	Actions       []actionView
}

type actionView struct {
	Kind   string
	Device string
	Serial string
}

func renderRows(disks []app.DiskInfo, scriptPresent bool) (string, error) {
	views := make([]rowView, 0, len(disks))
	for i, d := range disks {
		v := rowView{
			Class:         "odd",
			Icon:          "green-on.png",
			Name:          d.Name,
			Serial:        d.Serial,
			Temperature:   displayTemperature(d.Temperature),
			Size:          d.SizeHuman,
			HasPartitions: len(d.Partitions) > 0,
			ScriptPresent: scriptPresent,
			Running:       d.Status.State == preclear.StateRunning,
			Message:       d.Status.Message,
		}
		if i%2 == 1 {
			v.Class = "even"
		}
		if d.SpunDown {
			v.Icon = "green-blink.png"
		}
		for _, a := range d.Status.Actions {
			v.Actions = append(v.Actions, actionView{Kind: string(a), Device: d.Name, Serial: d.Serial})
		}
		views = append(views, v)
	}

	var buf bytes.Buffer
	if err := rowsTemplate.Execute(&buf, views); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// renderPreview renders the session output page. Output is escaped and runs
// of newlines become a single <br>.
func renderPreview(device, output string, alive bool) (string, error) {
	escaped := newlineRunRe.ReplaceAllString(html.EscapeString(output), "<br>")

	var buf bytes.Buffer
	err := previewTemplate.Execute(&buf, struct {
		Alive  bool
		Device string
		Output template.HTML
	}{
		Alive:  alive,
		Device: device,
		Output: template.HTML(escaped),
	})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}

func displayTemperature(temp string) string {
	if _, err := strconv.ParseFloat(strings.TrimSpace(temp), 64); err != nil {
		return "*"
	}
	return strings.TrimSpace(temp) + " °C"
}
