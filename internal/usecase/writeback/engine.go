// Package writeback applies joined answers to the live page and reports what
// happened to every field.
package writeback

import (
	"context"
	"sort"

	"formfill/internal/application/port/output"
	"formfill/internal/domain/entity"
)

type Engine struct {
	page   output.PagePort
	logger output.LoggerPort
}

func NewEngine(page output.PagePort, logger output.LoggerPort) *Engine {
	return &Engine{
		page:   page,
		logger: logger.WithField("component", "writeback"),
	}
}

// Apply writes every supported pair. Unsupported controls are skipped here and
// the remaining pairs go to the page in one call. A page failure is a transport
// FillError; per-field problems only show up in the report.
func (e *Engine) Apply(ctx context.Context, pairs []entity.FillPair) (entity.FillReport, error) {
	var report entity.FillReport
	writable := make([]entity.FillPair, 0, len(pairs))

	for _, p := range pairs {
		if p.Kind == entity.FieldKindOther {
			report.Outcomes = append(report.Outcomes, entity.FieldOutcome{
				FieldID:  p.FieldID,
				Selector: p.Selector,
				Status:   entity.OutcomeSkipped,
				Reason:   entity.ReasonUnsupportedControl,
			})
			continue
		}
		writable = append(writable, p)
	}

	if len(writable) > 0 {
		pageReport, err := e.page.ApplyValues(ctx, writable)
		if err != nil {
			e.logger.Error("Write-back failed", "pairs", len(writable), "error", err)
			return report, entity.NewFillError(entity.FillErrTransport, err)
		}
		report.Outcomes = append(report.Outcomes, pageReport.Outcomes...)
	}

	sort.SliceStable(report.Outcomes, func(i, j int) bool {
		return report.Outcomes[i].FieldID < report.Outcomes[j].FieldID
	})

	for _, o := range report.Outcomes {
		if o.Status == entity.OutcomeSkipped {
			e.logger.Warn("Field skipped",
				"field_id", o.FieldID,
				"selector", o.Selector,
				"reason", o.Reason)
		}
	}
	e.logger.Info("Write-back finished",
		"applied", report.Applied(),
		"skipped", report.Skipped())

	return report, nil
}
