// Package worker consumes queued report exports.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"household/internal/amqp"
	"household/internal/core"
)

// Exporter writes the report of one period.
type Exporter interface {
	ExportReport(ctx context.Context, month, year int, destination string) (string, error)
}

// ExportWorker handles report export messages from AMQP.
type ExportWorker struct {
	exporter Exporter

	exported atomic.Int64
	failed   atomic.Int64
	dropped  atomic.Int64
}

func NewExportWorker(exporter Exporter) *ExportWorker {
	return &ExportWorker{exporter: exporter}
}

// HandleExportMessage runs one export. Messages that can never succeed
// (invalid period) are dropped by returning nil; other failures are
// returned so the message is requeued.
func (w *ExportWorker) HandleExportMessage(ctx context.Context, msg *amqp.ReportExportMessage) error {
	slog.InfoContext(ctx, "Processing report export message",
		"month", msg.Month,
		"year", msg.Year,
		"destination", msg.Destination,
		"queued_at", msg.Timestamp)

	dest, err := w.exporter.ExportReport(ctx, msg.Month, msg.Year, msg.Destination)
	if errors.Is(err, core.ErrValidation) {
		w.dropped.Add(1)
		slog.WarnContext(ctx, "Dropping invalid export request", "error", err)
		return nil
	}
	if err != nil {
		w.failed.Add(1)
		return fmt.Errorf("export %02d/%d: %w", msg.Month, msg.Year, err)
	}

	w.exported.Add(1)
	slog.InfoContext(ctx, "Report exported", "destination", dest)
	return nil
}

// Stats returns counters since start.
func (w *ExportWorker) Stats() (exported, failed, dropped int64) {
	return w.exported.Load(), w.failed.Load(), w.dropped.Load()
}
