package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"time"
)

// RenderJSON serializes the report. Identical reports always produce
// byte-identical output; audit trails are diffed, so this is a contract,
// not an optimization.
func RenderJSON(r *Report) ([]byte, error) {
	if err := r.Validate(); err != nil {
		return nil, fmt.Errorf("render json: %w", err)
	}

	out, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("render json: %w", err)
	}
	return append(out, '\n'), nil
}

// RenderHTML produces a self-contained document for offline audit
// archiving: no external stylesheet or script.
func RenderHTML(r *Report) ([]byte, error) {
	if err := r.Validate(); err != nil {
		return nil, fmt.Errorf("render html: %w", err)
	}

	var buf bytes.Buffer
	if err := htmlTemplate.Execute(&buf, r); err != nil {
		return nil, fmt.Errorf("render html: %w", err)
	}
	return buf.Bytes(), nil
}

// NextReview is the reminder date printed in the report footer: one quarter
// after the run.
func (r *Report) NextReview() string {
	return r.Timestamp.UTC().AddDate(0, 3, 0).Format("2006-01-02")
}

// RenderedAt formats the run timestamp for display.
func (r *Report) RenderedAt() string {
	return r.Timestamp.UTC().Format(time.RFC3339)
}

var htmlTemplate = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Diagnostic Retention Compliance Report</title>
<style>
body { font-family: -apple-system, Segoe UI, sans-serif; margin: 2rem; color: #1c2733; }
h1 { font-size: 1.4rem; }
table { border-collapse: collapse; width: 100%; margin-top: 1rem; }
th, td { border: 1px solid #cbd5e0; padding: 0.4rem 0.6rem; text-align: left; vertical-align: top; font-size: 0.9rem; }
th { background: #edf2f7; }
.summary { background: #f7fafc; border: 1px solid #cbd5e0; padding: 1rem; }
.compliant { color: #22863a; font-weight: 600; }
.non_compliant { color: #cb2431; font-weight: 600; }
.sev-high { color: #cb2431; }
.sev-medium { color: #b08800; }
.sev-low { color: #6a737d; }
footer { margin-top: 2rem; font-size: 0.8rem; color: #6a737d; }
</style>
</head>
<body>
<h1>Diagnostic Retention Compliance Report</h1>
<div class="summary">
<p><strong>Environment:</strong> {{.Environment}}</p>
<p><strong>Generated:</strong> {{.RenderedAt}}</p>
<p><strong>Policy version:</strong> {{.PolicyVersion}}</p>
<p><strong>Compliance rate:</strong> {{printf "%.2f" .ComplianceRatePercent}}% ({{.CompliantResources}}/{{.TotalResources}} resources)</p>
</div>
<table>
<tr><th>Resource</th><th>Kind</th><th>Status</th><th>Findings</th></tr>
{{range .ResourceDetails}}<tr>
<td>{{.Resource.Name}}</td>
<td>{{.Kind}}</td>
<td class="{{.Status}}">{{.Status}}</td>
<td>{{if .Issues}}<ul>{{range .Issues}}<li class="sev-{{.Severity}}">{{if .Category}}{{.Category}}: {{end}}{{.Issue}} (expected {{.Expected}}, actual {{.Actual}})</li>{{end}}</ul>{{else}}&mdash;{{end}}</td>
</tr>
{{end}}</table>
<footer>
<p>Frameworks: {{range $i, $f := .ComplianceFrameworks}}{{if $i}}, {{end}}{{$f}}{{end}}</p>
<p>Next scheduled review: {{.NextReview}}</p>
</footer>
</body>
</html>
`))
