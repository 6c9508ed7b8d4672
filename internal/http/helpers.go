package http

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strings"

	"profitcalc/internal/core"
	applog "profitcalc/internal/log"
	"profitcalc/internal/storage"
)

// maxBodyBytes caps a whole multipart request: every file key at its
// per-file limit plus room for form fields.
func (s *Server) maxBodyBytes() int64 {
	return s.maxUploadBytes*int64(len(core.UploadKeys())) + 1<<20
}

// loadMonth reads a record through the month cache.
func (s *Server) loadMonth(ctx context.Context, key core.Period) (storage.MonthRecord, error) {
	if rec, ok := s.monthCache.Get(string(key)); ok {
		return rec, nil
	}
	rec, err := s.store.LoadMonth(ctx, key)
	if err != nil {
		return storage.MonthRecord{}, err
	}
	s.monthCache.Set(string(key), rec)
	return rec, nil
}

// displayName is the window's label for key, or the key itself.
func (s *Server) displayName(key core.Period) string {
	if info, ok := s.window.Lookup(string(key)); ok {
		return info.Display
	}
	return string(key)
}

// writeFormError maps ParseUploadForm errors to responses.
func writeFormError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, errMissingMonth):
		writeError(w, r, http.StatusBadRequest, "対象月が指定されていません")
	case errors.Is(err, errInvalidMonth):
		writeError(w, r, http.StatusBadRequest, "対象月の形式が正しくありません（YYYY-MM）")
	case errors.Is(err, errNoUploads):
		writeError(w, r, http.StatusBadRequest, "ファイルがアップロードされていません")
	case errors.Is(err, errBodyTooLarge):
		writeError(w, r, http.StatusRequestEntityTooLarge, "アップロードサイズが上限を超えています")
	default:
		applog.FromContext(r.Context()).WarnContext(r.Context(), "Rejected upload form", applog.FieldError, err)
		writeError(w, r, http.StatusBadRequest, "リクエストの形式が正しくありません")
	}
}

// writeMonthError maps store errors for a month key to responses.
func writeMonthError(w http.ResponseWriter, r *http.Request, key core.Period, op string, err error) {
	switch {
	case errors.Is(err, storage.ErrInvalidMonth):
		writeError(w, r, http.StatusBadRequest, "月キーの形式が正しくありません（YYYY-MM）")
	case errors.Is(err, storage.ErrMonthNotFound):
		writeError(w, r, http.StatusNotFound, string(key)+"のデータが見つかりません")
	default:
		applog.NewStructuredLogger(applog.FromContext(r.Context())).LogError(r.Context(),
			"Month operation failed", err, applog.ComponentStorage, op,
			applog.NewFields().WithUpload(string(key), "", "", ""))
		writeError(w, r, http.StatusInternalServerError, "データの取得中にエラーが発生しました: "+err.Error())
	}
}

// debugTerms select the result buckets reported by the debug endpoints.
var debugTerms = []string{"経費", "広告", "仕入", "送料", "スポンサー", "A-M", "O-AA"}

// matchingBuckets lists bucket names of every period that contain one of
// terms, keyed by period.
func matchingBuckets(agg core.Aggregate, terms []string) map[string][]string {
	out := map[string][]string{}
	for _, p := range agg.Periods() {
		var keys []string
		for name := range agg[p] {
			for _, t := range terms {
				if strings.Contains(name, t) {
					keys = append(keys, name)
					break
				}
			}
		}
		if len(keys) > 0 {
			sort.Strings(keys)
			out[string(p)] = keys
		}
	}
	return out
}
