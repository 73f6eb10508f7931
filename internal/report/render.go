package report

import (
	"bytes"
	"fmt"
	"html"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

const timeLayout = "2006-01-02 15:04 MST"

// RenderText renders a plain-text report suitable for a terminal or a .txt download
func RenderText(r *Report) string {
	var b strings.Builder

	title := fmt.Sprintf("VALUATION REPORT: %s (%s)", r.Name, r.Symbol)
	fmt.Fprintln(&b, title)
	fmt.Fprintln(&b, strings.Repeat("=", len(title)))
	fmt.Fprintf(&b, "Generated: %s\n", r.GeneratedAt.Format(timeLayout))
	fmt.Fprintf(&b, "Report ID: %s\n", r.ID)
	fmt.Fprintf(&b, "Profile:   %s (%s)\n", r.ProfileID, shortHash(r.ProfileHash))

	for _, sec := range r.Sections {
		writeTextSection(&b, sec.Title, sec.Rows)
	}

	fmt.Fprintln(&b)
	fmt.Fprintln(&b, "MODELS")
	fmt.Fprintf(&b, "  %-15s %8s %20s %26s\n", "Model", "Weight", "Per share", "Equity value")
	for _, m := range r.Models {
		fmt.Fprintf(&b, "  %-15s %8s %20s %26s\n", m.Model, m.Weight, m.PerShare, m.EquityValue)
	}

	fmt.Fprintln(&b)
	fmt.Fprintln(&b, "RESULT")
	if v := r.Verdict; v != nil {
		for _, row := range verdictRows(v) {
			fmt.Fprintf(&b, "  %-22s %s\n", row.Label+":", row.Value)
		}
	} else {
		fmt.Fprintln(&b, "  Not calculated")
	}

	writeTextSection(&b, "ASSUMPTIONS", r.Assumptions)

	if len(r.Notes) > 0 {
		fmt.Fprintln(&b)
		fmt.Fprintln(&b, "NOTES")
		for _, n := range r.Notes {
			fmt.Fprintf(&b, "  - %s\n", n)
		}
	}

	return b.String()
}

func writeTextSection(b *strings.Builder, title string, rows []Row) {
	fmt.Fprintln(b)
	fmt.Fprintln(b, strings.ToUpper(title))
	for _, row := range rows {
		fmt.Fprintf(b, "  %-22s %s\n", row.Label+":", row.Value)
	}
}

// RenderMarkdown renders the report as GitHub-flavoured Markdown
func RenderMarkdown(r *Report) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Valuation report: %s (%s)\n\n", mdEscape(r.Name), r.Symbol)
	fmt.Fprintf(&b, "Generated %s · report `%s` · profile `%s` (`%s`)\n\n",
		r.GeneratedAt.Format(timeLayout), r.ID, r.ProfileID, shortHash(r.ProfileHash))

	if v := r.Verdict; v != nil {
		b.WriteString("## Result\n\n")
		writeMarkdownTable(&b, verdictRows(v))
	} else {
		b.WriteString("## Result\n\nNot calculated.\n\n")
	}

	b.WriteString("## Models\n\n")
	b.WriteString("| Model | Weight | Per share | Equity value |\n")
	b.WriteString("|---|---:|---:|---:|\n")
	for _, m := range r.Models {
		fmt.Fprintf(&b, "| %s | %s | %s | %s |\n", mdEscape(m.Model), m.Weight, m.PerShare, m.EquityValue)
	}
	b.WriteString("\n")

	for _, sec := range r.Sections {
		fmt.Fprintf(&b, "## %s\n\n", sec.Title)
		writeMarkdownTable(&b, sec.Rows)
	}

	b.WriteString("## Assumptions\n\n")
	writeMarkdownTable(&b, r.Assumptions)

	if len(r.Notes) > 0 {
		b.WriteString("## Notes\n\n")
		for _, n := range r.Notes {
			fmt.Fprintf(&b, "- %s\n", mdEscape(n))
		}
		b.WriteString("\n")
	}

	return b.String()
}

func writeMarkdownTable(b *strings.Builder, rows []Row) {
	b.WriteString("| Item | Value |\n|---|---:|\n")
	for _, row := range rows {
		fmt.Fprintf(b, "| %s | %s |\n", mdEscape(row.Label), mdEscape(row.Value))
	}
	b.WriteString("\n")
}

// RenderHTML converts the Markdown rendering into a standalone HTML page
func RenderHTML(r *Report) ([]byte, error) {
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))

	var body bytes.Buffer
	if err := md.Convert([]byte(RenderMarkdown(r)), &body); err != nil {
		return nil, fmt.Errorf("markdown to html: %w", err)
	}

	var page bytes.Buffer
	fmt.Fprintf(&page, "<!doctype html>\n<html lang=\"en\">\n<head>\n<meta charset=\"utf-8\">\n<title>%s</title>\n",
		html.EscapeString(fmt.Sprintf("Valuation report: %s", r.Symbol)))
	page.WriteString(pageStyle)
	page.WriteString("</head>\n<body>\n")
	page.Write(body.Bytes())
	page.WriteString("</body>\n</html>\n")

	return page.Bytes(), nil
}

const pageStyle = `<style>
body { font-family: sans-serif; max-width: 960px; margin: 2rem auto; }
table { border-collapse: collapse; margin-bottom: 1.5rem; }
th, td { border: 1px solid #d1d5db; padding: 4px 10px; }
</style>
`

func verdictRows(v *Verdict) []Row {
	rows := []Row{
		{"Weighted target", v.Target},
		{"Current price", v.CurrentPrice},
		{"Upside", v.Upside},
		{"Recommendation", v.Action},
	}
	if v.Reason != "" {
		rows = append(rows, Row{"Reason", v.Reason})
	}
	if v.Source != "" {
		rows = append(rows, Row{"Source", v.Source})
	}
	rows = append(rows, Row{"Weight total", v.WeightTotal})
	rows = append(rows, Row{"Engine average", v.EngineAverage})
	if v.ModelsComputed != "" {
		rows = append(rows, Row{"Models computed", v.ModelsComputed})
	}
	return rows
}

func mdEscape(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
