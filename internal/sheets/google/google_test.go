package google

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"profitcalc/internal/core"
)

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestNew_MissingSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), Config{})
	if err == nil {
		t.Fatal("expected error for missing spreadsheet id")
	}
	if err.Error() != "missing GOOGLE_SPREADSHEET_ID" {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestLoadCredentials(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "sa.json")
	if err := os.WriteFile(file, []byte(`{"from":"file"}`), 0o600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		creds   Credentials
		want    string
		wantErr string
	}{
		{"inline wins", Credentials{JSON: `{"from":"inline"}`, File: file}, `{"from":"inline"}`, ""},
		{"service account file", Credentials{File: file}, `{"from":"file"}`, ""},
		{"application credentials fallback", Credentials{ApplicationFile: file}, `{"from":"file"}`, ""},
		{"missing file", Credentials{File: filepath.Join(dir, "nope.json")}, "", "read service account file"},
		{"nothing set", Credentials{}, "", "missing service account credentials"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := loadCredentials(context.Background(), quietLogger(), tt.creds)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("err = %v, want containing %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("credentials = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestClient_NilService(t *testing.T) {
	c := &Client{spreadsheetID: "test"}
	if _, err := c.WriteReport(context.Background(), "2025-07", nil); err == nil {
		t.Error("WriteReport should fail without a service")
	}
	if err := c.DeleteReport(context.Background(), "2025-07"); err == nil {
		t.Error("DeleteReport should fail without a service")
	}
}

// fakeSheets is a minimal Sheets API endpoint.
type fakeSheets struct {
	mu      sync.Mutex
	tabs    map[string]int64
	nextID  int64
	cleared []string
	updates map[string][][]interface{}
	deleted []int64
}

func newFakeSheets(tabs ...string) *fakeSheets {
	f := &fakeSheets{tabs: map[string]int64{}, updates: map[string][][]interface{}{}, nextID: 100}
	for _, t := range tabs {
		f.nextID++
		f.tabs[t] = f.nextID
	}
	return f
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := r.URL.Path
	switch {
	case r.Method == http.MethodGet && strings.HasPrefix(path, "/v4/spreadsheets/") && !strings.Contains(path, "/values/"):
		ss := gsheet.Spreadsheet{}
		for title, id := range f.tabs {
			ss.Sheets = append(ss.Sheets, &gsheet.Sheet{Properties: &gsheet.SheetProperties{Title: title, SheetId: id}})
		}
		json.NewEncoder(w).Encode(ss)
	case r.Method == http.MethodPost && strings.HasSuffix(path, ":batchUpdate"):
		var req gsheet.BatchUpdateSpreadsheetRequest
		json.NewDecoder(r.Body).Decode(&req)
		resp := gsheet.BatchUpdateSpreadsheetResponse{}
		for _, rq := range req.Requests {
			switch {
			case rq.AddSheet != nil:
				f.nextID++
				f.tabs[rq.AddSheet.Properties.Title] = f.nextID
				resp.Replies = append(resp.Replies, &gsheet.Response{AddSheet: &gsheet.AddSheetResponse{
					Properties: &gsheet.SheetProperties{Title: rq.AddSheet.Properties.Title, SheetId: f.nextID},
				}})
			case rq.DeleteSheet != nil:
				f.deleted = append(f.deleted, rq.DeleteSheet.SheetId)
				for title, id := range f.tabs {
					if id == rq.DeleteSheet.SheetId {
						delete(f.tabs, title)
					}
				}
			}
		}
		json.NewEncoder(w).Encode(resp)
	case r.Method == http.MethodPost && strings.HasSuffix(path, ":clear"):
		f.cleared = append(f.cleared, path[strings.Index(path, "/values/")+len("/values/"):strings.LastIndex(path, ":clear")])
		w.Write([]byte(`{}`))
	case r.Method == http.MethodPut && strings.Contains(path, "/values/"):
		if r.URL.Query().Get("valueInputOption") != "USER_ENTERED" {
			http.Error(w, "bad input option", http.StatusBadRequest)
			return
		}
		var vr gsheet.ValueRange
		json.NewDecoder(r.Body).Decode(&vr)
		rng := path[strings.Index(path, "/values/")+len("/values/"):]
		f.updates[rng] = vr.Values
		json.NewEncoder(w).Encode(gsheet.UpdateValuesResponse{UpdatedRange: rng})
	default:
		http.Error(w, "unexpected "+r.Method+" "+path, http.StatusNotFound)
	}
}

func newTestClient(t *testing.T, fake *fakeSheets) *Client {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	c, err := New(context.Background(), Config{
		SpreadsheetID: "sheet-id",
		SheetPrefix:   "Profit",
		Options:       []goption.ClientOption{goption.WithEndpoint(srv.URL + "/"), goption.WithoutAuthentication()},
		Logger:        quietLogger(),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c
}

func TestClient_WriteReport_CreatesTab(t *testing.T) {
	fake := newFakeSheets()
	c := newTestClient(t, fake)

	rows := []core.ReportRow{
		{Display: "2025年7月", Period: "2025-07", AmazonAM: 1000, TotalSales: 1000, GrossProfit: 800},
		{Display: "2025年8月", Period: "2025-08", AmazonAM: 1500, TotalSales: 1500, GrossProfit: 900, SalesChange: 50},
	}
	ref, err := c.WriteReport(context.Background(), "2025-08", rows)
	if err != nil {
		t.Fatalf("WriteReport() error = %v", err)
	}

	wantRange := "'Profit 2025-08'!A1:M3"
	if ref != wantRange {
		t.Errorf("ref = %q, want %q", ref, wantRange)
	}
	if _, ok := fake.tabs["Profit 2025-08"]; !ok {
		t.Error("tab was not created")
	}
	if len(fake.cleared) != 1 {
		t.Errorf("cleared = %v", fake.cleared)
	}
	values, ok := fake.updates[wantRange]
	if !ok {
		t.Fatalf("no update for %s; got %v", wantRange, fake.updates)
	}
	if len(values) != 3 {
		t.Fatalf("rows written = %d, want 3", len(values))
	}
	if values[0][0] != core.LabelYearMonth {
		t.Errorf("header[0] = %v", values[0][0])
	}
	if values[2][len(values[2])-2] != "50.00" {
		t.Errorf("sales change cell = %v", values[2][len(values[2])-2])
	}
}

func TestClient_WriteReport_ReusesTab(t *testing.T) {
	fake := newFakeSheets("Profit 2025-07")
	c := newTestClient(t, fake)

	if _, err := c.WriteReport(context.Background(), "2025-07", nil); err != nil {
		t.Fatalf("WriteReport() error = %v", err)
	}
	if len(fake.tabs) != 1 {
		t.Errorf("tabs = %v, want the existing tab only", fake.tabs)
	}
}

func TestClient_DeleteReport(t *testing.T) {
	fake := newFakeSheets("Profit 2025-07", "Other")
	c := newTestClient(t, fake)

	if err := c.DeleteReport(context.Background(), "2025-07"); err != nil {
		t.Fatalf("DeleteReport() error = %v", err)
	}
	if _, ok := fake.tabs["Profit 2025-07"]; ok {
		t.Error("tab still present")
	}
	if err := c.DeleteReport(context.Background(), "2025-09"); err != nil {
		t.Errorf("deleting a missing tab should succeed, got %v", err)
	}
	if len(fake.deleted) != 1 {
		t.Errorf("deleted = %v", fake.deleted)
	}
}
