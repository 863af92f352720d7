package render

import (
	"html/template"
	"io"
	"time"
)

// The root carries data-ready="true" so the preview capture knows the page
// finished rendering.
var pageTmpl = template.Must(template.New("calendar").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: sans-serif; margin: 16px; }
table { border-collapse: collapse; width: 100%; table-layout: fixed; }
th, td { border: 1px solid #000; vertical-align: top; padding: 4px; height: 120px; }
th { height: auto; }
td.out { color: #999; }
td.today { outline: 3px solid #000; outline-offset: -3px; }
.num { font-weight: bold; }
.corner { float: right; font-size: 11px; }
.festival { font-size: 12px; display: block; }
.schedule { font-size: 12px; display: block; margin-top: 2px; padding: 0 2px; overflow: hidden; white-space: nowrap; }
</style>
</head>
<body>
<div data-ready="true">
<h1>{{.Title}}</h1>
<table>
<tr>{{range .Grid.Weekdays}}<th>{{.}}</th>{{end}}</tr>
{{range .Grid.Weeks}}<tr>
{{range .}}<td class="{{if not .InMonth}}out{{end}}{{if .Today}} today{{end}}" data-key="{{.Date.Key}}">
<span class="num">{{.Date.Day}}</span>
{{with .Decorations}}
{{with .Corner}}<span class="corner" style="color: {{.Color}}">{{.Text}}</span>{{end}}
{{with .Festival}}<span class="festival" style="color: {{.Color}}">{{.Text}}</span>{{end}}
{{range .Schedule}}<span class="schedule" id="{{.ID}}" style="color: {{.Color}}; background: {{.BgColor}}">{{.Text}}</span>{{end}}
{{end}}
</td>{{end}}
</tr>{{end}}
</table>
</div>
</body>
</html>
`))

// WritePage renders g as a standalone HTML page.
func WritePage(w io.Writer, g Grid) error {
	title := time.Date(g.Year, time.Month(g.Month), 1, 0, 0, 0, 0, time.UTC).Format("January 2006")
	return pageTmpl.Execute(w, struct {
		Title string
		Grid  Grid
	}{Title: title, Grid: g})
}
