package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/src-d/enry/v2"
	"gopkg.in/yaml.v3"

	"github.com/Sumatoshi-tech/vcsmeta/pkg/checkout"
	"github.com/Sumatoshi-tech/vcsmeta/pkg/config"
	"github.com/Sumatoshi-tech/vcsmeta/pkg/history"
	"github.com/Sumatoshi-tech/vcsmeta/pkg/tags"
	"github.com/Sumatoshi-tech/vcsmeta/pkg/watcher"
	"github.com/Sumatoshi-tech/vcsmeta/pkg/worktree"
)

// ErrUnknownFormat is returned for an output format other than table, json or yaml.
var ErrUnknownFormat = errors.New("unknown output format")

const (
	shortHashLen = 7
	yamlIndent   = 2
	noValue      = "-"
)

// Renderer writes command results in the configured format.
type Renderer struct {
	out    io.Writer
	format string
	// now anchors relative times; tests pin it.
	now func() time.Time
}

// NewRenderer validates format and returns a Renderer writing to out.
func NewRenderer(out io.Writer, format string) (*Renderer, error) {
	switch format {
	case config.FormatTable, config.FormatJSON, config.FormatYAML:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}

	return &Renderer{out: out, format: format, now: time.Now}, nil
}

// structured writes value as JSON or YAML and reports whether it did.
func (r *Renderer) structured(value any) (bool, error) {
	switch r.format {
	case config.FormatJSON:
		data, err := json.MarshalIndent(value, "", "  ")
		if err != nil {
			return true, fmt.Errorf("encode json: %w", err)
		}

		_, err = fmt.Fprintln(r.out, string(data))

		return true, err
	case config.FormatYAML:
		enc := yaml.NewEncoder(r.out)
		enc.SetIndent(yamlIndent)

		err := enc.Encode(value)
		if err != nil {
			return true, fmt.Errorf("encode yaml: %w", err)
		}

		return true, enc.Close()
	default:
		return false, nil
	}
}

func newTable() table.Writer {
	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.SeparateRows = false
	tbl.Style().Options.SeparateColumns = false
	tbl.Style().Options.DrawBorder = false
	tbl.Style().Options.SeparateHeader = false
	tbl.Style().Format.Footer = text.FormatDefault

	return tbl
}

func (r *Renderer) flush(tbl table.Writer) error {
	_, err := fmt.Fprintln(r.out, tbl.Render())

	return err
}

// Files renders a file listing.
func (r *Renderer) Files(result worktree.ListResult) error {
	if done, err := r.structured(result); done {
		return err
	}

	tbl := newTable()
	tbl.AppendHeader(table.Row{"Path", "Language", "Commit", "Author", "When", "Lines", "Message"})

	for _, file := range result.Files {
		tbl.AppendRow(table.Row{
			file.Path,
			language(file.Path),
			r.commit(file.LastCommit),
			file.AuthorName,
			r.when(file.Timestamp),
			lines(file.Added, file.Deleted),
			summary(file.Message),
		})
	}

	tbl.AppendFooter(table.Row{fmt.Sprintf("Total: %d files", len(result.Files))})

	err := r.flush(tbl)
	if err != nil {
		return err
	}

	for _, skipped := range result.Skipped {
		_, err = color.New(color.FgYellow).Fprintf(r.out, "skipped %s: no line history\n", skipped)
		if err != nil {
			return err
		}
	}

	return nil
}

// Metadata renders one file's last-commit record.
func (r *Renderer) Metadata(meta history.FileMetadata) error {
	if done, err := r.structured(meta); done {
		return err
	}

	tbl := newTable()
	tbl.AppendRows([]table.Row{
		{"Path", meta.Path},
		{"Language", language(meta.Path)},
		{"Commit", meta.LastCommit},
		{"Author", fmt.Sprintf("%s <%s>", meta.AuthorName, meta.AuthorEmail)},
		{"When", r.when(meta.Timestamp)},
		{"Lines", lines(meta.Added, meta.Deleted)},
		{"Message", summary(meta.Message)},
	})

	return r.flush(tbl)
}

// History renders a file's change history.
func (r *Renderer) History(entries []history.CommitInfo) error {
	if done, err := r.structured(entries); done {
		return err
	}

	tbl := newTable()
	tbl.AppendHeader(table.Row{"Commit", "Author", "When", "Lines", "Message"})

	for _, entry := range entries {
		tbl.AppendRow(table.Row{
			r.commit(entry.Hash),
			entry.AuthorName,
			r.when(entry.Timestamp),
			lines(entry.Added, entry.Deleted),
			summary(entry.Message),
		})
	}

	tbl.AppendFooter(table.Row{fmt.Sprintf("Total: %d commits", len(entries))})

	return r.flush(tbl)
}

// Status renders working-tree status.
func (r *Renderer) Status(entries []worktree.StatusEntry) error {
	if done, err := r.structured(entries); done {
		return err
	}

	if len(entries) == 0 {
		_, err := color.New(color.FgGreen).Fprintln(r.out, "working tree clean")

		return err
	}

	tbl := newTable()
	tbl.AppendHeader(table.Row{"Status", "Path"})

	for _, entry := range entries {
		tbl.AppendRow(table.Row{statusLabel(entry), entry.Path})
	}

	return r.flush(tbl)
}

// Tags renders the tag catalog.
func (r *Renderer) Tags(list []tags.Tag) error {
	if done, err := r.structured(list); done {
		return err
	}

	tbl := newTable()
	tbl.AppendHeader(table.Row{"Tag", "Kind", "Target", "Tagger", "When", "Message"})

	for _, tag := range list {
		tbl.AppendRow(table.Row{
			tag.Name,
			string(tag.Kind),
			r.commit(tag.Target),
			tag.TaggerName,
			r.when(tag.Timestamp),
			summary(tag.Message),
		})
	}

	tbl.AppendFooter(table.Row{fmt.Sprintf("Total: %d tags", len(list))})

	return r.flush(tbl)
}

// State renders the HEAD position.
func (r *Renderer) State(state checkout.State) error {
	if done, err := r.structured(state); done {
		return err
	}

	if state.Mode == checkout.Detached {
		_, err := color.New(color.FgYellow).Fprintf(r.out, "HEAD detached at %s\n", r.commit(state.Commit))

		return err
	}

	_, err := color.New(color.FgGreen).Fprintf(r.out, "On branch %s (%s)\n", state.Branch, r.commit(state.Commit))

	return err
}

// Value renders a single named value, such as a commit id or URL.
func (r *Renderer) Value(key, value string) error {
	if done, err := r.structured(map[string]string{key: value}); done {
		return err
	}

	_, err := fmt.Fprintln(r.out, value)

	return err
}

func (r *Renderer) commit(hash string) string {
	if hash == "" {
		return noValue
	}

	if len(hash) > shortHashLen {
		return hash[:shortHashLen]
	}

	return hash
}

func (r *Renderer) when(unix int64) string {
	if unix == 0 {
		return noValue
	}

	return humanize.RelTime(time.Unix(unix, 0), r.now(), "ago", "from now")
}

func lines(added, deleted int) string {
	if added == 0 && deleted == 0 {
		return noValue
	}

	return fmt.Sprintf("+%s/-%s", humanize.Comma(int64(added)), humanize.Comma(int64(deleted)))
}

func language(p string) string {
	lang := enry.GetLanguage(path.Base(p), nil)
	if lang == "" {
		return noValue
	}

	return lang
}

// summary returns the first line of a commit or tag message.
func summary(message string) string {
	subject, _, _ := strings.Cut(message, "\n")

	return subject
}

func statusLabel(entry worktree.StatusEntry) string {
	var label string

	add := func(text string, attr color.Attribute) {
		if label != "" {
			label += ","
		}

		label += color.New(attr).Sprint(text)
	}

	if entry.New {
		add("new", color.FgGreen)
	}

	if entry.Modified {
		add("modified", color.FgYellow)
	}

	if entry.Deleted {
		add("deleted", color.FgRed)
	}

	if entry.Renamed {
		add("renamed", color.FgCyan)
	}

	if entry.Ignored {
		add("ignored", color.FgHiBlack)
	}

	return label
}

// Update renders one watch notification. Structured formats emit one
// document per update.
func (r *Renderer) Update(update Update) error {
	switch r.format {
	case config.FormatJSON:
		data, err := json.Marshal(update)
		if err != nil {
			return fmt.Errorf("encode json: %w", err)
		}

		_, err = fmt.Fprintln(r.out, string(data))

		return err
	case config.FormatYAML:
		_, err := fmt.Fprintln(r.out, "---")
		if err != nil {
			return err
		}

		_, err = r.structured(update)

		return err
	}

	kind := color.New(kindColor(update.Event.Kind)).Sprintf("%-6s", update.Event.Kind)

	switch {
	case update.Metadata == nil && update.Error != "":
		_, err := fmt.Fprintf(r.out, "%s %s  %s\n", kind, update.Path, color.RedString(update.Error))

		return err
	case update.Skipped:
		_, err := fmt.Fprintf(r.out, "%s %s  %s\n", kind, update.Path, color.YellowString("skipped"))

		return err
	case update.Metadata == nil:
		_, err := fmt.Fprintf(r.out, "%s %s\n", kind, update.Path)

		return err
	case update.Metadata.Untracked():
		_, err := fmt.Fprintf(r.out, "%s %s  %s\n", kind, update.Path, color.HiBlackString("untracked"))

		return err
	default:
		meta := update.Metadata
		_, err := fmt.Fprintf(r.out, "%s %s  %s %s %s %s\n",
			kind, update.Path, r.commit(meta.LastCommit), meta.AuthorName, r.when(meta.Timestamp), summary(meta.Message))

		return err
	}
}

func kindColor(kind watcher.Kind) color.Attribute {
	switch kind {
	case watcher.KindCreate:
		return color.FgGreen
	case watcher.KindRemove:
		return color.FgRed
	default:
		return color.FgYellow
	}
}
