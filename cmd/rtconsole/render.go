package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
	"github.com/mattn/go-runewidth"

	openairt "github.com/codewandler/openairt-console"
	"github.com/codewandler/openairt-console/console"
	"github.com/codewandler/openairt-console/eventlog"
	"github.com/codewandler/openairt-console/events"
)

const (
	ansiReset     = "\x1b[0m"
	ansiDim       = "\x1b[38;5;240m"
	ansiError     = "\x1b[38;5;196m"
	ansiClient    = "\x1b[38;5;44m"
	ansiServer    = "\x1b[38;5;34m"
	ansiUser      = "\x1b[38;5;220m"
	ansiAssistant = "\x1b[38;5;44m"
	ansiTool      = "\x1b[38;5;207m"
)

type renderer struct {
	out   io.Writer
	color bool
	width int
}

func newRenderer(out io.Writer, width int) *renderer {
	return &renderer{out: out, color: shouldUseColor(out), width: width}
}

func (r *renderer) colorize(code, s string) string {
	if !r.color {
		return s
	}
	return code + s + ansiReset
}

// speaker labels an item by role, falling back to its type.
func speaker(it openairt.Item) string {
	label := string(it.Role)
	if label == "" {
		label = it.Type
	}
	return strings.ReplaceAll(label, "_", " ")
}

// itemText is the display text of an item.
func itemText(it openairt.Item) string {
	f := it.Formatted
	switch {
	case it.Type == events.ItemTypeFunctionCallOutput:
		return f.Output
	case f.Tool != nil:
		return fmt.Sprintf("%s(%s)", f.Tool.Name, f.Tool.Arguments)
	case it.Role == openairt.RoleUser:
		if f.Transcript != "" {
			return f.Transcript
		}
		if len(f.Audio) > 0 {
			return "(awaiting transcript)"
		}
		if f.Text != "" {
			return f.Text
		}
		return "(item sent)"
	case it.Role == openairt.RoleAssistant:
		if f.Transcript != "" {
			return f.Transcript
		}
		if f.Text != "" {
			return f.Text
		}
		return "(truncated)"
	}
	return f.Text
}

func (r *renderer) roleColor(role openairt.Role) string {
	switch role {
	case openairt.RoleUser:
		return ansiUser
	case openairt.RoleAssistant:
		return ansiAssistant
	default:
		return ansiTool
	}
}

func (r *renderer) items(items []openairt.Item) {
	if len(items) == 0 {
		fmt.Fprintln(r.out, "awaiting connection...")
		return
	}

	tw := table.NewWriter()
	tw.SetOutputMirror(r.out)
	tw.SetStyle(table.StyleRounded)
	tw.Style().Options.SeparateRows = true

	textWidth := r.width - 48
	if textWidth < 20 {
		textWidth = 20
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight},
		{Number: 2, Align: text.AlignLeft},
		{Number: 3, Align: text.AlignLeft},
		{Number: 4, Align: text.AlignLeft, WidthMax: textWidth},
		{Number: 5, Align: text.AlignLeft},
	})
	tw.AppendHeader(table.Row{"#", "ID", "Speaker", "Content", "Audio"})

	for i, it := range items {
		audioCol := ""
		if it.Formatted.File != "" {
			audioCol = it.Formatted.File
		} else if n := len(it.Formatted.Audio); n > 0 {
			audioCol = formatAudioDuration(n)
		}
		tw.AppendRow(table.Row{
			i + 1,
			it.ID,
			r.colorize(r.roleColor(it.Role), speaker(it)),
			itemText(it),
			audioCol,
		})
	}
	tw.Render()
}

// formatAudioDuration renders a PCM16 byte count at the session rate.
func formatAudioDuration(bytes int) string {
	samples := bytes / 2
	d := time.Duration(samples) * time.Second / 24_000
	return d.Round(10 * time.Millisecond).String()
}

func (r *renderer) events(entries []eventlog.Entry, start time.Time, limit int) {
	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	if len(entries) == 0 {
		fmt.Fprintln(r.out, "no events")
		return
	}

	tw := table.NewWriter()
	tw.SetOutputMirror(r.out)
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"Time", "Source", "Type", "Count"})
	for _, e := range entries {
		source := string(e.Source)
		code := ansiServer
		if e.Source == openairt.SourceClient {
			code = ansiClient
		}
		if eventlog.IsError(e) {
			source = "error!"
			code = ansiError
		}
		count := ""
		if e.Count > 0 {
			count = fmt.Sprintf("(%d)", e.Count)
		}
		tw.AppendRow(table.Row{
			eventlog.FormatElapsed(start, e.Time),
			r.colorize(code, source),
			e.Type(),
			count,
		})
	}
	tw.Render()
}

func (r *renderer) inspect(e eventlog.Entry) error {
	m, err := eventlog.Inspect(e)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(r.out, string(data))
	return nil
}

func (r *renderer) status(s console.Snapshot, key string) {
	state := string(s.State)
	if s.Recording {
		state += ", recording"
	}
	fmt.Fprintf(r.out, "%s  mode=%s  items=%d  events=%d  key=%s\n",
		r.colorize(ansiDim, state), s.Mode, len(s.Items), len(s.Events), key)
}

// line prints a single completed item, cut to the terminal width.
func (r *renderer) line(it openairt.Item) {
	prefix := speaker(it) + "> "
	body := strings.ReplaceAll(itemText(it), "\n", " ")
	body = runewidth.Truncate(body, r.width-runewidth.StringWidth(prefix), "…")
	fmt.Fprintln(r.out, r.colorize(r.roleColor(it.Role), prefix)+body)
}

func shouldUseColor(out io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	file, ok := out.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
