package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"profitcalc/internal/archive"
	"profitcalc/internal/classify"
	"profitcalc/internal/core"
	"profitcalc/internal/ingest"
	applog "profitcalc/internal/log"
	"profitcalc/internal/storage"
	"profitcalc/internal/storage/memory"
)

const (
	ledgerCSV  = "注文日,販売価格,利益\n2025/07/05,1000,300\n2025/08/10,2000,500\n"
	expenseCSV = "日付,トランザクションの種類,説明,その他\n2025/07/03,注文,テスト,-120\n"
)

type fakePublisher struct {
	mu     sync.Mutex
	months []string
	err    error
}

func (f *fakePublisher) PublishReportSync(_ context.Context, month, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.months = append(f.months, month)
	return f.err
}

type failingStore struct{ storage.MonthStore }

func (failingStore) SaveMonth(context.Context, storage.MonthRecord) error {
	return errors.New("disk full")
}

type countingUploads struct{ saved, unsaved int }

func (c *countingUploads) UploadProcessed(saved bool) {
	if saved {
		c.saved++
	} else {
		c.unsaved++
	}
}

func newService(store storage.MonthStore, opts ...ServiceOption) *ProfitService {
	logger := applog.Nop()
	return NewProfitService(classify.NewEngine(logger.Slog()), store, logger, opts...)
}

func TestProcess_MergesSavesAndPublishes(t *testing.T) {
	store := memory.New()
	pub := &fakePublisher{}
	rec := &countingUploads{}
	fixed := time.Date(2025, 8, 15, 9, 0, 0, 0, time.UTC)
	svc := newService(store, WithPublisher(pub), WithUploadRecorder(rec), WithClock(func() time.Time { return fixed }))

	res, err := svc.Process(context.Background(), ProcessRequest{
		TargetMonth: "2025-08",
		Uploads: []Upload{
			{Key: core.FileKeyMakadAM, Filename: "ledger.csv", Data: []byte(ledgerCSV)},
			{Key: core.FileKeyExpenseAM, Filename: "tx.csv", Data: []byte(expenseCSV)},
		},
	})
	require.NoError(t, err)

	assert.True(t, res.Saved)
	assert.NotEmpty(t, res.BatchID)
	assert.Equal(t, []core.Period{"2025-07", "2025-08"}, res.Results.Periods())
	assert.Equal(t, int64(1000), res.Results["2025-07"][core.BucketAmazon])
	assert.Equal(t, int64(120), res.Results["2025-07"][core.AccountAM.ExpenseTotalBucket()])
	assert.Equal(t, int64(3000), res.Summary.TotalSales)
	assert.Equal(t, int64(800), res.Summary.TotalProfit)
	require.Len(t, res.Spreadsheet, 2)
	assert.Equal(t, 100.0, res.Spreadsheet[1].SalesChange)

	assert.Equal(t, map[string]string{"makad_a_m": "ledger.csv", "expense_a_m": "tx.csv"}, res.UploadedFiles)
	assert.Contains(t, res.Debug, "expense_a_m")
	assert.NotContains(t, res.Debug, "makad_a_m")
	assert.Equal(t, "-120", res.Debug["expense_a_m"].SampleRow["その他"])

	saved, err := store.LoadMonth(context.Background(), "2025-08")
	require.NoError(t, err)
	assert.Equal(t, res.BatchID, saved.Metadata.BatchID)
	assert.Equal(t, fixed, saved.Metadata.Timestamp)
	assert.Equal(t, res.Summary, saved.Summary)

	assert.Equal(t, []string{"2025-08"}, pub.months)
	assert.Equal(t, 1, rec.saved)
}

func TestProcess_BadFileContributesNothing(t *testing.T) {
	svc := newService(memory.New())

	res, err := svc.Process(context.Background(), ProcessRequest{
		TargetMonth: "2025-07",
		Uploads: []Upload{
			{Key: core.FileKeyMakadAM, Filename: "ledger.csv", Data: []byte(ledgerCSV)},
			{Key: core.FileKeyMercari, Filename: "empty.csv", Data: nil},
		},
	})
	require.NoError(t, err)
	require.Len(t, res.Sources, 2)
	assert.Empty(t, res.Sources[0].Error)
	assert.Contains(t, res.Sources[1].Error, ingest.ErrNoHeader.Error())
	assert.Equal(t, int64(3000), res.Summary.TotalSales)
}

func TestProcess_FileTooLarge(t *testing.T) {
	svc := newService(memory.New(), WithLimits(ingest.Limits{MaxBytes: 10, MaxRows: 100}))

	res, err := svc.Process(context.Background(), ProcessRequest{
		TargetMonth: "2025-07",
		Uploads:     []Upload{{Key: core.FileKeyMakadAM, Data: []byte(ledgerCSV)}},
	})
	require.NoError(t, err)
	assert.Contains(t, res.Sources[0].Error, "file too large")
	assert.Empty(t, res.Results)
}

func TestProcess_SaveFailureIsReported(t *testing.T) {
	pub := &fakePublisher{}
	rec := &countingUploads{}
	svc := newService(failingStore{memory.New()}, WithPublisher(pub), WithUploadRecorder(rec))

	res, err := svc.Process(context.Background(), ProcessRequest{
		TargetMonth: "2025-07",
		Uploads:     []Upload{{Key: core.FileKeyMakadAM, Data: []byte(ledgerCSV)}},
	})
	require.NoError(t, err)
	assert.False(t, res.Saved)
	assert.Empty(t, pub.months)
	assert.Equal(t, 1, rec.unsaved)
}

func TestProcess_PublishFailureDoesNotFail(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker down")}
	svc := newService(memory.New(), WithPublisher(pub))

	res, err := svc.Process(context.Background(), ProcessRequest{
		TargetMonth: "2025-07",
		Uploads:     []Upload{{Key: core.FileKeyMakadAM, Data: []byte(ledgerCSV)}},
	})
	require.NoError(t, err)
	assert.True(t, res.Saved)
}

func TestProcess_ArchivesUploads(t *testing.T) {
	root := t.TempDir()
	svc := newService(memory.New(), WithArchiver(archive.NewLocal(root, nil)))

	res, err := svc.Process(context.Background(), ProcessRequest{
		TargetMonth: "2025-07",
		Uploads:     []Upload{{Key: core.FileKeyMakadAM, Data: []byte(ledgerCSV)}},
	})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(res.Archived["makad_a_m"], "2025-07/files/makad_a_m.csv"))
}

func TestProcess_RejectsBadRequests(t *testing.T) {
	svc := newService(memory.New())

	_, err := svc.Process(context.Background(), ProcessRequest{TargetMonth: "2025-13"})
	assert.ErrorIs(t, err, core.ErrInvalidPeriod)

	_, err = svc.Process(context.Background(), ProcessRequest{TargetMonth: "2025-07"})
	assert.ErrorIs(t, err, ErrNoFiles)
}

func TestProcess_NilStoreNeverSaves(t *testing.T) {
	svc := newService(nil)
	res, err := svc.Process(context.Background(), ProcessRequest{
		TargetMonth: "2025-07",
		Uploads:     []Upload{{Key: core.FileKeyMakadAM, Data: []byte(ledgerCSV)}},
	})
	require.NoError(t, err)
	assert.False(t, res.Saved)
}

func TestProcess_CancelledContext(t *testing.T) {
	svc := newService(memory.New())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Process(ctx, ProcessRequest{
		TargetMonth: "2025-07",
		Uploads:     []Upload{{Key: core.FileKeyMakadAM, Data: []byte(ledgerCSV)}},
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestValidate(t *testing.T) {
	svc := newService(nil)

	got, err := svc.Validate(context.Background(), []Upload{
		{Key: core.FileKeyMakadAM, Data: []byte(ledgerCSV)},
		{Key: core.FileKeyMercari, Data: []byte("")},
	})
	require.NoError(t, err)

	ok := got["makad_a_m"]
	assert.True(t, ok.Valid)
	assert.Equal(t, 2, ok.Rows)
	assert.Equal(t, []string{"注文日", "販売価格", "利益"}, ok.Columns)

	bad := got["mercari"]
	assert.False(t, bad.Valid)
	assert.NotEmpty(t, bad.Error)

	_, err = svc.Validate(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoFiles)
}

func TestDebugInfoTruncates(t *testing.T) {
	cols := make([]string, 25)
	vals := make([]string, 25)
	for i := range cols {
		cols[i] = "c" + string(rune('A'+i))
		vals[i] = strings.Repeat("あ", 60)
	}
	d := debugInfo(core.NewRecord(cols, vals))

	assert.Len(t, d.Columns, debugColumns)
	assert.Len(t, d.SampleRow, debugFields)
	assert.Equal(t, strings.Repeat("あ", debugValueLen), d.SampleRow["cA"])
}
