package worker

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"household/internal/amqp"
	"household/internal/core"
)

type fakeExporter struct {
	err   error
	calls []string
}

func (f *fakeExporter) ExportReport(_ context.Context, month, year int, destination string) (string, error) {
	f.calls = append(f.calls, fmt.Sprintf("%02d-%d|%s", month, year, destination))
	if f.err != nil {
		return "", f.err
	}
	if destination == "" {
		destination = "default.xlsx"
	}
	return destination, nil
}

func TestExportWorker_HandleExportMessage(t *testing.T) {
	tests := []struct {
		name        string
		exportErr   error
		wantErr     bool
		wantCounter [3]int64
	}{
		{"success", nil, false, [3]int64{1, 0, 0}},
		{"io failure is retried", fmt.Errorf("write: %w", core.ErrIO), true, [3]int64{0, 1, 0}},
		{"validation failure is dropped", fmt.Errorf("bad: %w", core.ErrValidation), false, [3]int64{0, 0, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exp := &fakeExporter{err: tt.exportErr}
			w := NewExportWorker(exp)

			err := w.HandleExportMessage(context.Background(), amqp.NewReportExportMessage(3, 2025, "out.xlsx"))
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !errors.Is(err, core.ErrIO) {
				t.Fatalf("err = %v, want wrapped ErrIO", err)
			}
			if len(exp.calls) != 1 || exp.calls[0] != "03-2025|out.xlsx" {
				t.Fatalf("calls = %v", exp.calls)
			}

			e, f, d := w.Stats()
			if got := [3]int64{e, f, d}; got != tt.wantCounter {
				t.Fatalf("stats = %v, want %v", got, tt.wantCounter)
			}
		})
	}
}
