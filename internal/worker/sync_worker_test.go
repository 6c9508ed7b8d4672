package worker

import (
	"context"
	"errors"
	"testing"

	"profitcalc/internal/amqp"
	"profitcalc/internal/core"
)

type fakeSyncer struct {
	months  []core.Period
	err     error
	all     int
	allErr  error
	allSeen bool
}

func (f *fakeSyncer) SyncMonth(_ context.Context, month core.Period) error {
	f.months = append(f.months, month)
	return f.err
}

func (f *fakeSyncer) SyncAll(context.Context) (int, error) {
	f.allSeen = true
	return f.all, f.allErr
}

func TestHandleReportSync(t *testing.T) {
	tests := []struct {
		name      string
		month     string
		syncErr   error
		wantErr   bool
		wantSyncs int
	}{
		{name: "valid month", month: "2025-07", wantSyncs: 1},
		{name: "invalid month dropped", month: "2025-13", wantSyncs: 0},
		{name: "sink failure requeues", month: "2025-08", syncErr: errors.New("boom"), wantErr: true, wantSyncs: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			syncer := &fakeSyncer{err: tt.syncErr}
			w := NewSyncWorker(syncer, nil)

			err := w.HandleReportSync(context.Background(), amqp.NewReportSyncMessage(tt.month, "b1"))
			if (err != nil) != tt.wantErr {
				t.Fatalf("HandleReportSync() error = %v, wantErr %v", err, tt.wantErr)
			}
			if len(syncer.months) != tt.wantSyncs {
				t.Errorf("expected %d syncs, got %d", tt.wantSyncs, len(syncer.months))
			}
		})
	}
}

func TestStartupSyncCheck(t *testing.T) {
	syncer := &fakeSyncer{all: 3}
	w := NewSyncWorker(syncer, nil)

	if err := w.StartupSyncCheck(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !syncer.allSeen {
		t.Error("expected SyncAll to be called")
	}

	syncer.allErr = errors.New("list failed")
	if err := w.StartupSyncCheck(context.Background()); err == nil {
		t.Error("expected error when listing fails")
	}
}
