package userinteraction

import (
	"context"
	"io"
	"os"
	"time"

	"formfill/internal/application/port/output"
	"formfill/internal/domain/entity"

	"github.com/fatih/color"
)

var _ output.UserInteractionPort = (*ConsoleUserInteraction)(nil)

type ConsoleUserInteraction struct {
	out io.Writer
}

func NewConsoleUserInteraction() *ConsoleUserInteraction {
	return &ConsoleUserInteraction{out: color.Output}
}

// NewWriterUserInteraction writes plain status lines to w.
func NewWriterUserInteraction(w io.Writer) *ConsoleUserInteraction {
	if w == nil {
		w = os.Stdout
	}
	return &ConsoleUserInteraction{out: w}
}

func (u *ConsoleUserInteraction) ShowSelectionArmed(ctx context.Context) {
	cyan := color.New(color.FgCyan, color.Bold)
	cyan.Fprintln(u.out, "\n🎯 Selection armed: click an element on the page, Esc to cancel")
}

func (u *ConsoleUserInteraction) ShowSelectionCancelled(ctx context.Context) {
	dim := color.New(color.Faint)
	dim.Fprintln(u.out, "Selection cancelled")
}

func (u *ConsoleUserInteraction) ShowEpisodeStart(ctx context.Context, episodeID string, fields int) {
	yellow := color.New(color.FgYellow, color.Bold)
	yellow.Fprintf(u.out, "\n✏️  Filling %d field(s)", fields)

	dim := color.New(color.Faint)
	dim.Fprintf(u.out, "  [%s]\n", shortID(episodeID))
}

func (u *ConsoleUserInteraction) ShowEpisodeResult(ctx context.Context, ep *entity.Episode) {
	if ep.Status != entity.EpisodeStatusCompleted {
		return
	}

	green := color.New(color.FgGreen)
	green.Fprintf(u.out, "✓ Applied %d, skipped %d", ep.Report.Applied(), ep.Report.Skipped())

	dim := color.New(color.Faint)
	dim.Fprintf(u.out, "  (%s, %s)\n", ep.Model.DisplayName, ep.FinishedAt.Sub(ep.StartedAt).Round(10*time.Millisecond))

	for _, o := range ep.Report.Outcomes {
		if o.Status != entity.OutcomeSkipped {
			continue
		}
		dim.Fprintf(u.out, "   - field %d %s: %s\n", o.FieldID, truncate(o.Selector, 60), o.Reason)
	}
	if ep.PreviewPath != "" {
		dim.Fprintf(u.out, "   preview: %s\n", ep.PreviewPath)
	}
}

func (u *ConsoleUserInteraction) ShowError(ctx context.Context, err error) {
	red := color.New(color.FgRed)

	if kind, ok := entity.FillErrorKindOf(err); ok {
		red.Fprintf(u.out, "❌ %s: ", describeKind(kind))
	} else {
		red.Fprint(u.out, "❌ Error: ")
	}

	dim := color.New(color.Faint)
	dim.Fprintln(u.out, truncate(err.Error(), 300))
}

func describeKind(kind entity.FillErrorKind) string {
	descriptions := map[entity.FillErrorKind]string{
		entity.FillErrNoFields:         "Nothing to fill",
		entity.FillErrNoCredentials:    "No API key",
		entity.FillErrNoPrompt:         "No prompt selected",
		entity.FillErrNoModel:          "No model selected",
		entity.FillErrCompletionFailed: "Completion failed",
		entity.FillErrInvalidResponse:  "Unusable model response",
		entity.FillErrTimeout:          "Completion timed out",
		entity.FillErrAborted:          "Aborted",
		entity.FillErrTransport:        "Page unreachable",
		entity.FillErrNormalize:        "Could not read element",
	}
	if d, ok := descriptions[kind]; ok {
		return d
	}
	return string(kind)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
