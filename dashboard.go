package main

import (
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/luka0304sz/weight-ocr-server/pkg/history"
)

var dashboardTmpl = template.Must(template.New("dashboard").Parse(`<!DOCTYPE html>
<html>
<head>
<title>Weight OCR Server</title>
<meta http-equiv="refresh" content="5">
<style>
body { font-family: sans-serif; margin: 2em; color: #222; }
table { border-collapse: collapse; margin-top: 1em; }
th, td { border: 1px solid #ccc; padding: 4px 10px; text-align: left; }
.stats span { display: inline-block; margin-right: 2em; }
.low { color: #b00; }
</style>
</head>
<body>
<h1>Weight OCR Server</h1>
<div class="stats">
<span>processed: <b>{{.Processed}}</b></span>
<span>rejected: <b>{{.Rejected}}</b></span>
<span>failed: <b>{{.Failed}}</b></span>
<span>in flight: <b>{{.InFlight}}/{{.Limit}}</b></span>
</div>
<h2>Recent readings</h2>
<table>
<tr><th>Captured</th><th>Weight</th><th>Confidence</th><th>Raw text</th></tr>
{{range .Readings}}
<tr>
<td>{{.CapturedAt.Format "15:04:05"}}</td>
<td>{{.Weight}}</td>
<td{{if lt .Confidence 0.5}} class="low"{{end}}>{{printf "%.3f" .Confidence}}</td>
<td>{{.RawText}}</td>
</tr>
{{else}}
<tr><td colspan="4">no readings yet</td></tr>
{{end}}
</table>
</body>
</html>
`))

func (s *server) dashboardHandler(c *gin.Context) {
	data := struct {
		Processed int64
		Rejected  int64
		Failed    int64
		InFlight  int64
		Limit     int64
		Readings  []history.Reading
	}{
		Processed: s.processed.Load(),
		Rejected:  s.rejected.Load(),
		Failed:    s.failed.Load(),
		InFlight:  s.admission.InFlight(),
		Limit:     s.admission.Limit(),
		Readings:  s.ring.Recent(15),
	}
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(http.StatusOK)
	if err := dashboardTmpl.Execute(c.Writer, data); err != nil {
		c.Status(http.StatusInternalServerError)
	}
}
