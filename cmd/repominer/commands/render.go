package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"gopkg.in/yaml.v3"

	"github.com/Sumatoshi-tech/repominer/pkg/classifier"
	"github.com/Sumatoshi-tech/repominer/pkg/mining"
)

// Output formats.
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
)

const shortHashLen = 12

func validateFormat(format string) error {
	switch format {
	case FormatTable, FormatJSON, FormatYAML:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// writeStructured encodes value as JSON or YAML.
func writeStructured(w io.Writer, format string, value any) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")

		err := enc.Encode(value)
		if err != nil {
			return fmt.Errorf("encode json: %w", err)
		}
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)

		err := enc.Encode(value)
		if err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}

		return enc.Close()
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}

	return nil
}

// summary describes one run for the table header line.
type summary struct {
	commits int
	took    time.Duration
	resumed bool
}

func newTable(w io.Writer) table.Writer {
	tbl := table.NewWriter()
	tbl.SetOutputMirror(w)
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.SeparateRows = false
	tbl.Style().Options.DrawBorder = false

	return tbl
}

func heading(noColor bool) *color.Color {
	c := color.New(color.FgCyan, color.Bold)
	if noColor {
		c.DisableColor()
	}

	return c
}

func writeSummary(w io.Writer, s summary, parts []string, noColor bool) {
	c := color.New(color.FgGreen, color.Bold)
	if noColor {
		c.DisableColor()
	}

	prefix := "Mined"
	if s.resumed {
		prefix = "Resumed and mined"
	}

	c.Fprintf(w, "%s %s commits in %s: %s\n",
		prefix, humanize.Comma(int64(s.commits)), s.took.Round(time.Millisecond), strings.Join(parts, ", "))
}

func count(n int, noun string) string {
	return humanize.Comma(int64(n)) + " " + noun
}

func shortHash(hash string) string {
	return hash[:min(len(hash), shortHashLen)]
}

// renderFixingCommits writes the fixing commits and their labels as a table.
func renderFixingCommits(w io.Writer, fixing []string, labels map[string]classifier.LabelSet, noColor bool) {
	heading(noColor).Fprintln(w, "Fixing commits")

	tbl := newTable(w)
	tbl.AppendHeader(table.Row{"Commit", "Labels"})

	for _, hash := range fixing {
		tbl.AppendRow(table.Row{shortHash(hash), labels[hash].String()})
	}

	tbl.AppendFooter(table.Row{"Total", humanize.Comma(int64(len(fixing)))})
	tbl.Render()
}

// renderResult writes the full mining result as tables.
func renderResult(w io.Writer, result *mining.Result, s summary, noColor bool) {
	writeSummary(w, s, []string{
		count(len(result.FixingCommits), "fixing commits"),
		count(len(result.FixedFiles), "fixed files"),
		count(len(result.FailureProne), "failure-prone files"),
	}, noColor)

	fmt.Fprintln(w)
	renderFixingCommits(w, result.FixingCommits, result.Labels, noColor)

	fmt.Fprintln(w)
	heading(noColor).Fprintln(w, "Fixed files")

	fixed := newTable(w)
	fixed.AppendHeader(table.Row{"File", "Introduced", "Fixed"})

	for _, f := range result.FixedFiles {
		fixed.AppendRow(table.Row{f.Filepath, shortHash(f.BIC), shortHash(f.FIC)})
	}

	fixed.Render()

	fmt.Fprintln(w)
	heading(noColor).Fprintln(w, "Failure-prone files")

	prone := newTable(w)
	prone.AppendHeader(table.Row{"File", "Commit", "Fixing commit"})

	for _, f := range result.FailureProne {
		prone.AppendRow(table.Row{f.Filepath, shortHash(f.Commit), shortHash(f.FixingCommit)})
	}

	prone.Render()
}
