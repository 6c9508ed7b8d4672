package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"profitcalc/internal/core"
	applog "profitcalc/internal/log"
	"profitcalc/internal/services"
)

const (
	serviceVersion = "2.0.0"
	readyTimeout   = 5 * time.Second
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Omit("success").
		Set("status", "ok").
		Set("uptime_seconds", int64(time.Since(s.started).Seconds())).
		Send(w, r)
}

// handleReady reports 503 until the store answers a ping.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	resp := NewJSONResponse().Omit("success").Set("status", "ready")
	checks := map[string]any{"store": "ok"}
	if err := s.store.Ping(ctx); err != nil {
		applog.FromContext(ctx).WarnContext(ctx, "Readiness check failed", applog.FieldError, err)
		checks["store"] = err.Error()
		resp.Status(http.StatusServiceUnavailable).Set("status", "not ready")
	}
	st := s.monthCache.Stats()
	rl := s.limiter.GetMetrics()
	resp.
		Set("checks", checks).
		Set("cache", map[string]any{"size": st.Size, "hits": st.Hits, "misses": st.Misses}).
		Set("rate_limit", map[string]any{"limited": rl.TotalHits, "clients": rl.ClientCount}).
		Send(w, r)
}

func (s *Server) handleProfitHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Omit("success").
		Set("status", "healthy").
		Set("message", "Amazon利益計算システム（完全版）が正常に動作しています").
		Set("version", serviceVersion).
		Send(w, r)
}

// handleUpload classifies the posted files for target_month and saves the
// merged report.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := applog.FromContext(ctx)

	form, err := ParseUploadForm(w, r, s.maxBodyBytes(), s.maxUploadBytes, true)
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}
	if err != nil {
		writeFormError(w, r, err)
		return
	}

	res, err := s.service.Process(ctx, services.ProcessRequest{TargetMonth: form.TargetMonth, Uploads: form.Uploads})
	if err != nil {
		switch {
		case errors.Is(err, core.ErrInvalidPeriod):
			writeFormError(w, r, errInvalidMonth)
		case errors.Is(err, services.ErrNoFiles):
			writeFormError(w, r, errNoUploads)
		default:
			logger.ErrorContext(ctx, "Upload processing failed",
				applog.FieldMonth, string(form.TargetMonth), applog.FieldError, err)
			writeError(w, r, http.StatusInternalServerError, "処理中にエラーが発生しました: "+err.Error())
		}
		return
	}
	s.monthCache.Delete(string(res.TargetMonth))

	NewJSONResponse().
		Set("message", fmt.Sprintf("%sのデータを処理し、%d個のファイルを保存しました", res.TargetMonth, len(res.UploadedFiles))).
		Set("target_month", res.TargetMonth).
		Set("batch_id", res.BatchID).
		Set("results", res.Results).
		Set("spreadsheet_data", res.Spreadsheet).
		Set("summary", res.Summary).
		Set("uploaded_files", res.UploadedFiles).
		Set("saved", res.Saved).
		Set("sources", res.Sources).
		SetIf(len(res.Debug) > 0, "debug_csv_info", res.Debug).
		SetIf(len(form.Skipped) > 0, "skipped_files", form.Skipped).
		Send(w, r)
}

// handleValidate reads each posted file without classifying or saving it.
func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	form, err := ParseUploadForm(w, r, s.maxBodyBytes(), s.maxUploadBytes, false)
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}
	if err != nil {
		writeFormError(w, r, err)
		return
	}

	results, err := s.service.Validate(ctx, form.Uploads)
	if err != nil {
		applog.FromContext(ctx).ErrorContext(ctx, "Validation failed", applog.FieldError, err)
		writeError(w, r, http.StatusInternalServerError, "検証中にエラーが発生しました: "+err.Error())
		return
	}
	for key, res := range results {
		if res.Valid {
			res.Message = "ファイル形式が正常です"
		} else {
			res.Message = "ファイル形式に問題があります"
		}
		results[key] = res
	}

	uploaded := make(map[string]string, len(form.Uploads))
	for _, up := range form.Uploads {
		uploaded[string(up.Key)] = up.Filename
	}
	NewJSONResponse().
		Set("validation_results", results).
		Set("uploaded_files", uploaded).
		SetIf(len(form.Skipped) > 0, "skipped_files", form.Skipped).
		Send(w, r)
}
