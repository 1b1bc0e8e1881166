package validation

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/ternarybob/diario/internal/models"
)

// PlatformRollup aggregates the per-city outcomes of one adapter kind
type PlatformRollup struct {
	Platform models.SpiderType `json:"platform"`
	Cities   int               `json:"cities"`
	Passed   int               `json:"passed"`
	Warned   int               `json:"warned"`
	Failed   int               `json:"failed"`
	Skipped  int               `json:"skipped"`
	Gazettes int               `json:"gazettes"`
}

// Summary is the run-level rollup
type Summary struct {
	Total    int           `json:"total"`
	Passed   int           `json:"passed"`
	Warned   int           `json:"warned"`
	Failed   int           `json:"failed"`
	Skipped  int           `json:"skipped"`
	Gazettes int           `json:"gazettes"`
	Requests int           `json:"requests"`
	Duration time.Duration `json:"duration"`
}

// Report is the full outcome of one validation run
type Report struct {
	Mode       Mode             `json:"mode"`
	Window     models.DateRange `json:"window"`
	StartedAt  time.Time        `json:"startedAt"`
	FinishedAt time.Time        `json:"finishedAt"`
	Summary    Summary          `json:"summary"`
	Platforms  []PlatformRollup `json:"platforms"`
	Cities     []CityResult     `json:"cities"`
}

// finalize computes the summary and platform rollups from the city results
func (r *Report) finalize(finished time.Time) {
	r.FinishedAt = finished
	r.Summary = Summary{Total: len(r.Cities), Duration: finished.Sub(r.StartedAt)}

	rollups := make(map[models.SpiderType]*PlatformRollup)
	for _, city := range r.Cities {
		rollup, ok := rollups[city.Platform]
		if !ok {
			rollup = &PlatformRollup{Platform: city.Platform}
			rollups[city.Platform] = rollup
		}
		rollup.Cities++
		rollup.Gazettes += city.Gazettes
		r.Summary.Gazettes += city.Gazettes
		r.Summary.Requests += city.Requests

		switch city.Status {
		case StatusPass:
			r.Summary.Passed++
			rollup.Passed++
		case StatusWarn:
			r.Summary.Warned++
			rollup.Warned++
		case StatusSkip:
			r.Summary.Skipped++
			rollup.Skipped++
		default:
			r.Summary.Failed++
			rollup.Failed++
		}
	}

	r.Platforms = r.Platforms[:0]
	for _, rollup := range rollups {
		r.Platforms = append(r.Platforms, *rollup)
	}
	sort.Slice(r.Platforms, func(i, j int) bool {
		return r.Platforms[i].Platform < r.Platforms[j].Platform
	})
}

// Failures lists the cities that failed, for regression runs and the summary
func (r *Report) Failures() []CityResult {
	var failures []CityResult
	for _, city := range r.Cities {
		if city.Status == StatusFail {
			failures = append(failures, city)
		}
	}
	return failures
}

// JSON renders the report as indented JSON
func (r *Report) JSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// Markdown renders the report as a GitHub-flavored document
func (r *Report) Markdown() string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Validation report — %s mode\n\n", r.Mode)
	fmt.Fprintf(&b, "Window `%s`, started %s, took %s.\n\n",
		r.Window, r.StartedAt.Format(time.RFC3339), r.Summary.Duration.Round(time.Millisecond))
	fmt.Fprintf(&b, "**%d cities**: %d passed, %d warned, %d failed, %d skipped. %d gazettes from %d requests.\n\n",
		r.Summary.Total, r.Summary.Passed, r.Summary.Warned, r.Summary.Failed, r.Summary.Skipped,
		r.Summary.Gazettes, r.Summary.Requests)

	b.WriteString("## Platforms\n\n")
	b.WriteString("| Platform | Cities | Passed | Warned | Failed | Skipped | Gazettes |\n")
	b.WriteString("|---|---|---|---|---|---|---|\n")
	for _, p := range r.Platforms {
		fmt.Fprintf(&b, "| %s | %d | %d | %d | %d | %d | %d |\n",
			p.Platform, p.Cities, p.Passed, p.Warned, p.Failed, p.Skipped, p.Gazettes)
	}
	b.WriteString("\n")

	if failures := r.Failures(); len(failures) > 0 {
		b.WriteString("## Failures\n\n")
		for _, city := range failures {
			fmt.Fprintf(&b, "- **%s** (%s, %s)\n", city.SpiderID, city.Name, city.Platform)
			for _, issue := range city.Issues {
				fmt.Fprintf(&b, "  - `%s/%s`: %s\n", issue.Validator, issue.Severity, issue.Message)
			}
		}
		b.WriteString("\n")
	}

	b.WriteString("## Cities\n\n")
	b.WriteString("| City | Platform | Status | Gazettes | Requests | Time |\n")
	b.WriteString("|---|---|---|---|---|---|\n")
	for _, city := range r.Cities {
		fmt.Fprintf(&b, "| %s | %s | %s | %d | %d | %s |\n",
			city.SpiderID, city.Platform, city.Status,
			city.Gazettes, city.Requests, city.Duration.Round(time.Millisecond))
	}
	return b.String()
}

// HTML renders the Markdown report into a standalone HTML page
func (r *Report) HTML() ([]byte, error) {
	var body bytes.Buffer
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	if err := md.Convert([]byte(r.Markdown()), &body); err != nil {
		return nil, fmt.Errorf("render report html: %w", err)
	}

	var page bytes.Buffer
	page.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	fmt.Fprintf(&page, "<title>Validation report — %s</title>\n", r.StartedAt.Format("2006-01-02 15:04"))
	page.WriteString("<style>body{font-family:sans-serif;margin:2em auto;max-width:60em}" +
		"table{border-collapse:collapse}td,th{border:1px solid #ccc;padding:4px 8px}</style>\n")
	page.WriteString("</head>\n<body>\n")
	page.Write(body.Bytes())
	page.WriteString("</body>\n</html>\n")
	return page.Bytes(), nil
}

// CSV renders one row per city
func (r *Report) CSV() ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := []string{"spiderId", "name", "territoryId", "platform", "status", "gazettes", "requests", "durationMs", "issues"}
	if err := w.Write(header); err != nil {
		return nil, err
	}
	for _, city := range r.Cities {
		issues := make([]string, 0, len(city.Issues))
		for _, issue := range city.Issues {
			issues = append(issues, fmt.Sprintf("%s/%s: %s", issue.Validator, issue.Severity, issue.Message))
		}
		row := []string{
			city.SpiderID,
			city.Name,
			city.TerritoryID,
			string(city.Platform),
			string(city.Status),
			strconv.Itoa(city.Gazettes),
			strconv.Itoa(city.Requests),
			strconv.FormatInt(city.Duration.Milliseconds(), 10),
			strings.Join(issues, "; "),
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

// Console renders the report as terminal tables
func (r *Report) Console(w io.Writer) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle(fmt.Sprintf("Validation — %s mode, window %s", r.Mode, r.Window))
	t.AppendHeader(table.Row{"City", "Platform", "Status", "Gazettes", "Requests", "Time"})
	for _, city := range r.Cities {
		t.AppendRow(table.Row{
			city.SpiderID, city.Platform, city.Status,
			city.Gazettes, city.Requests, city.Duration.Round(time.Millisecond),
		})
	}
	t.AppendFooter(table.Row{
		fmt.Sprintf("%d cities", r.Summary.Total), "",
		fmt.Sprintf("%dP/%dW/%dF/%dS", r.Summary.Passed, r.Summary.Warned, r.Summary.Failed, r.Summary.Skipped),
		r.Summary.Gazettes, r.Summary.Requests,
		r.Summary.Duration.Round(time.Millisecond),
	})
	t.SetStyle(table.StyleLight)
	t.Render()

	failures := r.Failures()
	if len(failures) == 0 {
		return
	}
	ft := table.NewWriter()
	ft.SetOutputMirror(w)
	ft.SetTitle("Failures")
	ft.AppendHeader(table.Row{"City", "Validator", "Message"})
	for _, city := range failures {
		for _, issue := range city.Issues {
			if issue.Severity != SeverityFail {
				continue
			}
			ft.AppendRow(table.Row{city.SpiderID, issue.Validator, issue.Message})
		}
	}
	ft.SetStyle(table.StyleLight)
	ft.Render()
}

// WriteFiles emits the JSON, Markdown, HTML and CSV renditions into dir,
// named by the run's start timestamp.
func (r *Report) WriteFiles(dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create report dir: %w", err)
	}
	stem := "validation-" + r.StartedAt.Format("20060102-150405")

	jsonBytes, err := r.JSON()
	if err != nil {
		return nil, err
	}
	htmlBytes, err := r.HTML()
	if err != nil {
		return nil, err
	}
	csvBytes, err := r.CSV()
	if err != nil {
		return nil, err
	}

	outputs := []struct {
		ext  string
		data []byte
	}{
		{"json", jsonBytes},
		{"md", []byte(r.Markdown())},
		{"html", htmlBytes},
		{"csv", csvBytes},
	}

	written := make([]string, 0, len(outputs))
	for _, out := range outputs {
		path := filepath.Join(dir, stem+"."+out.ext)
		if err := os.WriteFile(path, out.data, 0o644); err != nil {
			return written, fmt.Errorf("write %s report: %w", out.ext, err)
		}
		written = append(written, path)
	}
	return written, nil
}
