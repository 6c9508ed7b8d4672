package http

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"

	"profitcalc/internal/core"
	"profitcalc/internal/export"
	applog "profitcalc/internal/log"
	"profitcalc/internal/storage"
)

// fileLister is implemented by stores that keep one directory per month.
type fileLister interface {
	Files(key core.Period) ([]string, error)
}

// handleListMonths lists the selectable window with has_data flags.
func (s *Server) handleListMonths(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	saved, err := s.store.ListMonths(ctx)
	if err != nil {
		applog.FromContext(ctx).ErrorContext(ctx, "Failed to list months", applog.FieldError, err)
		writeError(w, r, http.StatusInternalServerError, "月リスト取得エラー: "+err.Error())
		return
	}
	has := make(map[core.Period]bool, len(saved))
	for _, m := range saved {
		has[m.Month] = true
	}

	months := make([]map[string]any, 0)
	for _, info := range s.window.Months() {
		months = append(months, map[string]any{
			"key":      info.Key,
			"display":  info.Display,
			"year":     info.Year,
			"month":    info.Month,
			"has_data": has[info.Key],
		})
	}
	NewJSONResponse().
		Set("months", months).
		Set("saved_count", len(saved)).
		Send(w, r)
}

func (s *Server) handleGetMonth(w http.ResponseWriter, r *http.Request) {
	key, err := monthParam(r)
	if err != nil {
		writeMonthError(w, r, key, applog.OpRead, err)
		return
	}
	rec, err := s.loadMonth(r.Context(), key)
	if err != nil {
		writeMonthError(w, r, key, applog.OpRead, err)
		return
	}
	debugKeys := matchingBuckets(rec.Results, []string{"経費", "広告", "A-M", "O-AA"})
	NewJSONResponse().
		Set("month_key", key).
		Set("display_name", s.displayName(key)).
		Set("data", sanitizeRecord(rec)).
		SetIf(len(debugKeys) > 0, "debug_keys", debugKeys).
		Send(w, r)
}

// handleSpreadsheet returns the month's report rows as JSON, or as an xlsx
// download with ?format=xlsx.
func (s *Server) handleSpreadsheet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	key, err := monthParam(r)
	if err != nil {
		writeMonthError(w, r, key, applog.OpRead, err)
		return
	}
	rec, err := s.loadMonth(ctx, key)
	if err != nil {
		writeMonthError(w, r, key, applog.OpRead, err)
		return
	}
	rec = sanitizeRecord(rec)

	switch format := strings.ToLower(r.URL.Query().Get("format")); format {
	case "", "json":
	case "xlsx":
		var buf bytes.Buffer
		if err := export.WriteWorkbook(&buf, string(key), rec.Spreadsheet); err != nil {
			applog.FromContext(ctx).ErrorContext(ctx, "Failed to render workbook",
				applog.FieldMonth, string(key), applog.FieldOperation, applog.OpExport, applog.FieldError, err)
			writeError(w, r, http.StatusInternalServerError, "Excel出力に失敗しました: "+err.Error())
			return
		}
		w.Header().Set("Content-Type", export.ContentType)
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="profit_%s.xlsx"`, key))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(buf.Bytes())
		return
	default:
		writeError(w, r, http.StatusBadRequest, "未対応の形式です: "+format)
		return
	}

	NewJSONResponse().
		Set("month_key", key).
		Set("display_name", s.displayName(key)).
		Set("spreadsheet_data", rec.Spreadsheet).
		Set("metadata", rec.Metadata).
		Send(w, r)
}

// handleDeleteMonth removes a saved month and its sheet.
func (s *Server) handleDeleteMonth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	key, err := monthParam(r)
	if err != nil {
		writeMonthError(w, r, key, applog.OpDelete, err)
		return
	}
	if err := s.store.DeleteMonth(ctx, key); err != nil {
		writeMonthError(w, r, key, applog.OpDelete, err)
		return
	}
	s.monthCache.Delete(string(key))

	if s.deleter != nil {
		if err := s.deleter.DeleteReport(ctx, string(key)); err != nil {
			applog.FromContext(ctx).WarnContext(ctx, "Failed to delete month sheet",
				applog.FieldMonth, string(key), applog.FieldError, err)
		}
	}
	applog.FromContext(ctx).InfoContext(ctx, "Month deleted",
		applog.FieldMonth, string(key), applog.FieldOperation, applog.OpDelete)

	NewJSONResponse().
		Set("message", string(key)+"のデータを削除しました").
		Send(w, r)
}

// handleCheckSavedData describes the structure of a saved month. Without
// ?month= it picks the latest saved month.
func (s *Server) handleCheckSavedData(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	key := core.Period(strings.TrimSpace(r.URL.Query().Get("month")))
	if key == "" {
		saved, err := s.store.ListMonths(ctx)
		if err != nil {
			writeMonthError(w, r, key, applog.OpList, err)
			return
		}
		if len(saved) == 0 {
			writeError(w, r, http.StatusNotFound, "保存済みデータがありません")
			return
		}
		key = saved[len(saved)-1].Month
	} else if err := storage.ValidateKey(key); err != nil {
		writeMonthError(w, r, key, applog.OpRead, err)
		return
	}

	rec, err := s.loadMonth(ctx, key)
	if err != nil {
		writeMonthError(w, r, key, applog.OpRead, err)
		return
	}

	periods := make([]string, 0, len(rec.Results))
	for _, p := range rec.Results.Periods() {
		periods = append(periods, string(p))
	}
	var columns []string
	if len(rec.Spreadsheet) > 0 {
		for _, c := range rec.Spreadsheet[0].Cells() {
			columns = append(columns, c.Label)
		}
	}
	info := map[string]any{
		"month":               key,
		"uploaded_files":      rec.Metadata.UploadedFiles,
		"results_keys":        periods,
		"spreadsheet_columns": columns,
		"expense_ad_keys":     matchingBuckets(rec.Results, debugTerms),
	}
	if fl, ok := s.store.(fileLister); ok {
		files, err := fl.Files(key)
		if err != nil {
			applog.FromContext(ctx).WarnContext(ctx, "Failed to list month files",
				applog.FieldMonth, string(key), applog.FieldError, err)
		}
		info["files"] = files
	}

	NewJSONResponse().
		Set("debug_info", info).
		Set("message", "保存済みデータの構造を確認しました。").
		Send(w, r)
}
