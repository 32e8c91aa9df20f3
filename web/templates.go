package web

const layoutTemplate = `{{define "layout"}}<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}} - bigrun</title>
<style>
body { font-family: system-ui, sans-serif; margin: 0; color: #1d1d1f; }
header { background: #20232a; color: #fff; padding: 12px 24px; }
header a { color: #fff; margin-right: 16px; text-decoration: none; }
header a.active { font-weight: bold; }
main { padding: 24px; }
table { border-collapse: collapse; width: 100%; }
td, th { text-align: left; padding: 6px 10px; border-bottom: 1px solid #ddd; }
pre { background: #f5f5f7; padding: 12px; overflow-x: auto; }
.state-active { color: #0a66c2; }
.state-succeeded { color: #1a7f37; }
.state-failed { color: #cf222e; }
.state-cancelled { color: #6e7781; }
</style>
</head>
<body>
<header><strong>bigrun</strong> &nbsp; <a href="/ui" {{if eq .NavActive "dashboard"}}class="active"{{end}}>Dashboard</a></header>
<main>{{template "content" .Data}}</main>
</body>
</html>{{end}}`

var pageTemplates = map[string]string{
	"dashboard": `{{define "content"}}
<h1>Dashboard</h1>
<p>
<span class="state-active">{{.ActiveCount}} active</span> &middot;
<span class="state-succeeded">{{.SucceededCount}} succeeded</span> &middot;
<span class="state-failed">{{.FailedCount}} failed</span> &middot;
<span class="state-cancelled">{{.CancelledCount}} cancelled</span>
</p>
<h2>Scripts</h2>
{{if .Scripts}}
<table>
<tr><th>Name</th><th>Revision</th><th>Lines</th><th>Executions</th><th>Updated</th></tr>
{{range .Scripts}}
<tr><td><a href="/ui/scripts/{{.Name}}">{{.Name}}</a></td><td>{{.RevisionID}}</td><td>{{countLines .Source}}</td><td>{{.ExecutionCount}} ({{.ActiveCount}} active)</td><td>{{timeAgo .UpdateTime}}</td></tr>
{{end}}
</table>
{{else}}
<p>No scripts deployed.</p>
{{end}}
<h2>Recent executions</h2>
{{template "executions" .RecentExecs}}
{{end}}
{{define "executions"}}
{{if .}}
<table>
<tr><th></th><th>Execution</th><th>Script</th><th>Started</th><th>Duration</th></tr>
{{range .}}
<tr class="{{stateClass .State}}"><td>{{stateIcon .State}}</td><td><a href="/ui/executions/{{.ID}}">{{shortID .ID}}</a></td><td>{{.Script}}</td><td>{{timeAgo .StartTime}}</td><td>{{duration .StartTime .EndTime}}</td></tr>
{{end}}
</table>
{{else}}
<p>No executions yet.</p>
{{end}}
{{end}}`,

	"script": `{{define "content"}}
<h1>{{.Script.Name}}</h1>
<p>Revision {{.Script.RevisionID}} &middot; created {{formatTime .Script.CreateTime}} &middot; updated {{formatTime .Script.UpdateTime}}</p>
<pre>{{.Script.Source}}</pre>
<h2>Executions</h2>
{{template "executions" .Executions}}
{{end}}
{{define "executions"}}
{{if .}}
<table>
<tr><th></th><th>Execution</th><th>Started</th><th>Duration</th></tr>
{{range .}}
<tr class="{{stateClass .State}}"><td>{{stateIcon .State}}</td><td><a href="/ui/executions/{{.ID}}">{{shortID .ID}}</a></td><td>{{formatTime .StartTime}}</td><td>{{duration .StartTime .EndTime}}</td></tr>
{{end}}
</table>
{{else}}
<p>No executions yet.</p>
{{end}}
{{end}}`,

	"execution": `{{define "content"}}
<h1>Execution {{shortID .ID}}</h1>
<p class="{{stateClass .State}}">{{stateIcon .State}} {{.State}}</p>
<p>Script <a href="/ui/scripts/{{.Script}}">{{.Script}}</a> at revision {{.RevisionID}}, started {{formatTime .StartTime}}, ran {{duration .StartTime .EndTime}}</p>
{{if .Args}}<p>Arguments: {{range .Args}}<code>{{.}}</code> {{end}}</p>{{end}}
{{with .Error}}<h2>Error</h2><pre>{{.Message}}{{if .Line}} (line {{.Line}}, column {{.Column}}){{end}}</pre>{{end}}
<h2>Output</h2>
<pre>{{truncate .Output 65536}}</pre>
{{if .Globals}}
<h2>Globals</h2>
<table>
{{range $k, $v := .Globals}}<tr><td>{{$k}}</td><td>{{truncate $v 200}}</td></tr>{{end}}
</table>
{{end}}
{{end}}`,

	"not_found": `{{define "content"}}
<h1>Not found</h1>
<p>{{.}}</p>
<p><a href="/ui">Back to dashboard</a></p>
{{end}}`,
}
