package tui

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/aretw0/lattice/pkg/domain"
)

// Format selects how records are printed.
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
)

// ParseFormat validates a --format value.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case "", FormatTable:
		return FormatTable, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unknown format %q (want table or json)", s)
	}
}

// MarkdownTable renders records as a markdown table. Columns follow the
// first record's keys; later records with other keys get their own columns.
func MarkdownTable(records []domain.Record) string {
	if len(records) == 0 {
		return "_no records_\n"
	}

	var columns []string
	seen := make(map[string]bool)
	for _, rec := range records {
		for _, k := range rec.Keys {
			if !seen[k] {
				seen[k] = true
				columns = append(columns, k)
			}
		}
	}

	var b strings.Builder
	b.WriteString("| " + strings.Join(escapeAll(columns), " | ") + " |\n")
	b.WriteString("|" + strings.Repeat(" --- |", len(columns)) + "\n")
	for _, rec := range records {
		cells := make([]string, len(columns))
		for i, col := range columns {
			if v, ok := rec.Get(col); ok {
				cells[i] = cell(v)
			}
		}
		b.WriteString("| " + strings.Join(cells, " | ") + " |\n")
	}
	return b.String()
}

func cell(v domain.Value) string {
	switch v.Kind() {
	case domain.KindNull:
		return "_null_"
	case domain.KindList, domain.KindMap:
		data, err := json.Marshal(v)
		if err != nil {
			return escape(v.String())
		}
		return escape(string(data))
	default:
		return escape(v.String())
	}
}

func escapeAll(ss []string) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = escape(s)
	}
	return out
}

func escape(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}

// Printer writes records to an output in one format.
type Printer struct {
	Out      io.Writer
	Format   Format
	Renderer func(string) (string, error) // nil prints raw markdown
}

// Print writes records, plus the result ID when there is one to release.
func (p *Printer) Print(records []domain.Record, id domain.ResultID) error {
	if p.Format == FormatJSON {
		out := struct {
			ResultID domain.ResultID `json:"result_id,omitempty"`
			Records  []domain.Record `json:"records"`
		}{ResultID: id, Records: records}
		if out.Records == nil {
			out.Records = []domain.Record{}
		}
		enc := json.NewEncoder(p.Out)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	md := MarkdownTable(records)
	if id != "" {
		md += fmt.Sprintf("\nResult `%s` holds its session open until released.\n", id)
	}
	if p.Renderer != nil {
		rendered, err := p.Renderer(md)
		if err == nil {
			md = rendered
		}
	}
	_, err := io.WriteString(p.Out, md)
	return err
}
