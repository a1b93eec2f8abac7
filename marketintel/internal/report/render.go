package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"time"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"

	"github.com/hazyhaar/marketintel/marketintel/internal/errs"
	"github.com/hazyhaar/marketintel/marketintel/internal/store"
)

// Output formats.
const (
	FormatJSON     = "json"
	FormatHTML     = "html"
	FormatMarkdown = "markdown"
)

const pageTemplate = `<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>{{.Title}}</title></head>
<body>
<h1>{{.Title}}</h1>
<p>Kind: {{.Kind}}{{if .Period}} | Period: {{.Period}}{{end}} | Generated: {{.Generated}}</p>
{{template "value" .Content}}
</body></html>
{{define "value"}}{{if isMap .}}<ul>{{range $k, $v := .}}<li><strong>{{$k}}</strong>: {{template "value" $v}}</li>{{end}}</ul>{{else if isList .}}{{if .}}<ol>{{range .}}<li>{{template "value" .}}</li>{{end}}</ol>{{else}}<em>none</em>{{end}}{{else if isNil .}}<em>n/a</em>{{else}}{{.}}{{end}}{{end}}`

// Renderer turns stored report content into json, html or markdown.
type Renderer struct {
	page *template.Template
	md   *converter.Converter
}

// NewRenderer creates a Renderer.
func NewRenderer() *Renderer {
	funcs := template.FuncMap{
		"isMap":  func(v any) bool { _, ok := v.(map[string]any); return ok },
		"isList": func(v any) bool { _, ok := v.([]any); return ok },
		"isNil":  func(v any) bool { return v == nil },
	}
	return &Renderer{
		page: template.Must(template.New("report").Funcs(funcs).Parse(pageTemplate)),
		md: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
	}
}

// Render returns the report in format with its content type. Only completed
// reports have content to render.
func (rd *Renderer) Render(r *store.Report, format string) ([]byte, string, error) {
	if r.Status != store.StatusCompleted || r.ContentJSON == nil {
		return nil, "", fmt.Errorf("%w: report %s is %s", errs.ErrNoData, r.ID, r.Status)
	}
	switch format {
	case "", FormatJSON:
		return []byte(*r.ContentJSON), "application/json", nil
	case FormatHTML:
		page, err := rd.html(r)
		if err != nil {
			return nil, "", err
		}
		return page, "text/html; charset=utf-8", nil
	case FormatMarkdown:
		page, err := rd.html(r)
		if err != nil {
			return nil, "", err
		}
		md, err := rd.md.ConvertString(string(page))
		if err != nil {
			return nil, "", fmt.Errorf("markdown: %w", err)
		}
		return []byte(md), "text/markdown; charset=utf-8", nil
	default:
		return nil, "", fmt.Errorf("%w: unknown format %q", errs.ErrValidation, format)
	}
}

func (rd *Renderer) html(r *store.Report) ([]byte, error) {
	// UseNumber keeps numbers as written instead of float64 formatting.
	dec := json.NewDecoder(bytes.NewReader([]byte(*r.ContentJSON)))
	dec.UseNumber()
	var content any
	if err := dec.Decode(&content); err != nil {
		return nil, fmt.Errorf("decode report content: %w", err)
	}
	data := struct {
		Title, Kind, Period, Generated string
		Content                        any
	}{Title: r.Title, Kind: r.Kind, Period: r.PeriodKey, Content: content}
	if r.GeneratedAt != nil {
		data.Generated = time.UnixMilli(*r.GeneratedAt).UTC().Format(time.RFC3339)
	}
	var buf bytes.Buffer
	if err := rd.page.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("render html: %w", err)
	}
	return buf.Bytes(), nil
}
