package report

import (
	"encoding/json"
	"fmt"
	htmltemplate "html/template"
	"io"
	"text/template"
	"time"

	"github.com/FranksOps/kwscout/internal/storage"
)

// MethodStats aggregates the calls made to one upstream method.
type MethodStats struct {
	Calls        int           `json:"calls"`
	Errors       int           `json:"errors"`
	Timeouts     int           `json:"timeouts"`
	MeanDuration time.Duration `json:"mean_duration"`

	total time.Duration
}

// Summary contains aggregated figures about journaled upstream calls.
type Summary struct {
	TotalCalls    int                     `json:"total_calls"`
	TotalErrors   int                     `json:"total_errors"`
	TotalTimeouts int                     `json:"total_timeouts"`
	ByMethod      map[string]*MethodStats `json:"by_method"`
	StatusCodes   map[int]int             `json:"status_codes"`
	Keywords      int                     `json:"distinct_keywords"`
	MeanDuration  time.Duration           `json:"mean_duration"`
	StartTime     time.Time               `json:"start_time"`
	EndTime       time.Time               `json:"end_time"`
	Duration      time.Duration           `json:"duration"`
}

// GenerateSummary aggregates call records into a Summary.
func GenerateSummary(records []*storage.CallRecord) Summary {
	s := Summary{
		ByMethod:    make(map[string]*MethodStats),
		StatusCodes: make(map[int]int),
	}

	if len(records) == 0 {
		return s
	}

	s.StartTime = records[0].CreatedAt
	s.EndTime = records[0].CreatedAt

	var total time.Duration
	keywords := make(map[string]struct{})

	for _, r := range records {
		s.TotalCalls++
		total += r.Duration

		m, ok := s.ByMethod[r.Method]
		if !ok {
			m = &MethodStats{}
			s.ByMethod[r.Method] = m
		}
		m.Calls++
		m.total += r.Duration

		switch r.Outcome {
		case storage.OutcomeTimeout:
			s.TotalTimeouts++
			m.Timeouts++
		case storage.OutcomeError:
			s.TotalErrors++
			m.Errors++
		}

		if r.StatusCode > 0 {
			s.StatusCodes[r.StatusCode]++
		}
		if r.Keyword != "" {
			keywords[r.Keyword] = struct{}{}
		}

		if r.CreatedAt.Before(s.StartTime) {
			s.StartTime = r.CreatedAt
		}
		if r.CreatedAt.After(s.EndTime) {
			s.EndTime = r.CreatedAt
		}
	}

	for _, m := range s.ByMethod {
		m.MeanDuration = m.total / time.Duration(m.Calls)
	}
	s.Keywords = len(keywords)
	s.MeanDuration = total / time.Duration(s.TotalCalls)
	s.Duration = s.EndTime.Sub(s.StartTime)
	return s
}

// WriteJSON writes the summary to the provided writer in JSON format.
func WriteJSON(w io.Writer, summary Summary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		return fmt.Errorf("report: encode json: %w", err)
	}
	return nil
}

// WriteText writes a human-readable text summary to the provided writer.
func WriteText(w io.Writer, summary Summary) error {
	const textTmpl = `kwscout Upstream Call Summary
-----------------------------
Time:          {{.StartTime.Format "2006-01-02 15:04:05"}} - {{.EndTime.Format "2006-01-02 15:04:05"}}
Duration:      {{.Duration}}
Total Calls:   {{.TotalCalls}} ({{.Keywords}} distinct keywords)
Mean Latency:  {{.MeanDuration}}
Errors:        {{.TotalErrors}}
Timeouts:      {{.TotalTimeouts}}

Methods:
{{- range $method, $m := .ByMethod}}
  {{$method}}: {{$m.Calls}} calls, {{$m.Errors}} errors, {{$m.Timeouts}} timeouts, mean {{$m.MeanDuration}}
{{- else}}
  None
{{- end}}

Status Codes:
{{- range $code, $count := .StatusCodes}}
  {{$code}}: {{$count}}
{{- else}}
  None
{{- end}}
`

	t, err := template.New("textReport").Parse(textTmpl)
	if err != nil {
		return fmt.Errorf("report: parse text template: %w", err)
	}

	if err := t.Execute(w, summary); err != nil {
		return fmt.Errorf("report: render text: %w", err)
	}

	return nil
}

// WriteHTML writes a basic HTML report to the provided writer.
func WriteHTML(w io.Writer, summary Summary) error {
	const htmlTmpl = `<!DOCTYPE html>
<html>
<head>
<title>kwscout Upstream Call Report</title>
<style>
  body { font-family: sans-serif; margin: 40px; color: #333; }
  h1 { border-bottom: 2px solid #ccc; padding-bottom: 10px; }
  .stat-card { display: inline-block; padding: 20px; margin: 10px 10px 10px 0; background: #f4f4f4; border-radius: 5px; min-width: 150px; }
  .stat-val { font-size: 24px; font-weight: bold; }
  .bad { color: red; }
  table { border-collapse: collapse; margin-top: 10px; }
  th, td { padding: 8px 12px; border: 1px solid #ccc; text-align: left; }
  th { background: #eaeaea; }
</style>
</head>
<body>
  <h1>kwscout Upstream Call Report</h1>
  <p><strong>Time:</strong> {{.StartTime.Format "2006-01-02 15:04:05"}} to {{.EndTime.Format "2006-01-02 15:04:05"}} ({{.Duration}})</p>

  <div class="stat-card">
    <div>Total Calls</div>
    <div class="stat-val">{{.TotalCalls}}</div>
  </div>
  <div class="stat-card">
    <div>Errors</div>
    <div class="stat-val{{if gt .TotalErrors 0}} bad{{end}}">{{.TotalErrors}}</div>
  </div>
  <div class="stat-card">
    <div>Timeouts</div>
    <div class="stat-val{{if gt .TotalTimeouts 0}} bad{{end}}">{{.TotalTimeouts}}</div>
  </div>
  <div class="stat-card">
    <div>Mean Latency</div>
    <div class="stat-val">{{.MeanDuration}}</div>
  </div>

  <h3>Methods</h3>
  <table>
    <tr><th>Method</th><th>Calls</th><th>Errors</th><th>Timeouts</th><th>Mean</th></tr>
    {{- range $method, $m := .ByMethod}}
    <tr><td>{{$method}}</td><td>{{$m.Calls}}</td><td>{{$m.Errors}}</td><td>{{$m.Timeouts}}</td><td>{{$m.MeanDuration}}</td></tr>
    {{- else}}
    <tr><td colspan="5">None</td></tr>
    {{- end}}
  </table>

  <h3>Status Codes</h3>
  <table>
    <tr><th>Code</th><th>Count</th></tr>
    {{- range $code, $count := .StatusCodes}}
    <tr><td>{{$code}}</td><td>{{$count}}</td></tr>
    {{- else}}
    <tr><td colspan="2">None</td></tr>
    {{- end}}
  </table>
</body>
</html>
`
	t, err := htmltemplate.New("htmlReport").Parse(htmlTmpl)
	if err != nil {
		return fmt.Errorf("report: parse html template: %w", err)
	}

	if err := t.Execute(w, summary); err != nil {
		return fmt.Errorf("report: render html: %w", err)
	}

	return nil
}
