// Package http provides HTTP server and handler implementations.
//
// This file parses the multipart upload forms and the month path
// parameter shared by several handlers.

package http

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"profitcalc/internal/core"
	"profitcalc/internal/services"
	"profitcalc/internal/storage"
)

const formFieldMonth = "target_month"

var (
	errMissingMonth = errors.New("target month missing")
	errInvalidMonth = errors.New("target month invalid")
	errNoUploads    = errors.New("no csv files uploaded")
	errBodyTooLarge = errors.New("request body too large")
	errBadForm      = errors.New("malformed multipart form")
)

var formValidator = newFormValidator()

func newFormValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("period", func(fl validator.FieldLevel) bool {
		return core.Period(fl.Field().String()).Valid()
	})
	return v
}

type monthForm struct {
	TargetMonth string `validate:"required,period"`
}

// UploadForm is the parsed body of an upload or validate request.
type UploadForm struct {
	TargetMonth core.Period
	Uploads     []services.Upload
	// Skipped lists file keys whose file was not a .csv.
	Skipped []string
}

// ParseUploadForm reads a multipart body capped at maxBody bytes. Each
// file is read up to maxFile+1 bytes so oversize files are still rejected
// downstream. The target month is only checked when requireMonth is set.
func ParseUploadForm(w http.ResponseWriter, r *http.Request, maxBody, maxFile int64, requireMonth bool) (UploadForm, error) {
	var form UploadForm
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return form, errBodyTooLarge
		}
		return form, fmt.Errorf("%w: %v", errBadForm, err)
	}

	if requireMonth {
		month, err := validateMonth(r.PostFormValue(formFieldMonth))
		if err != nil {
			return form, err
		}
		form.TargetMonth = month
	}

	for _, key := range core.UploadKeys() {
		headers := r.MultipartForm.File[string(key)]
		if len(headers) == 0 || headers[0].Filename == "" {
			continue
		}
		fh := headers[0]
		if !allowedFile(fh.Filename) {
			form.Skipped = append(form.Skipped, string(key))
			continue
		}
		data, err := readPart(fh, maxFile)
		if err != nil {
			return form, fmt.Errorf("%w: %s: %v", errBadForm, key, err)
		}
		form.Uploads = append(form.Uploads, services.Upload{Key: key, Filename: fh.Filename, Data: data})
	}
	if len(form.Uploads) == 0 {
		return form, errNoUploads
	}
	return form, nil
}

func validateMonth(raw string) (core.Period, error) {
	f := monthForm{TargetMonth: strings.TrimSpace(raw)}
	if err := formValidator.Struct(f); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 && verrs[0].Tag() == "required" {
			return "", errMissingMonth
		}
		return "", fmt.Errorf("%w: %q", errInvalidMonth, f.TargetMonth)
	}
	return core.Period(f.TargetMonth), nil
}

// allowedFile accepts only .csv names, case-insensitively.
func allowedFile(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".csv")
}

func readPart(fh *multipart.FileHeader, maxFile int64) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(io.LimitReader(f, maxFile+1))
}

// monthParam returns the {key} path parameter as a period.
func monthParam(r *http.Request) (core.Period, error) {
	key := core.Period(strings.TrimSpace(chi.URLParam(r, "key")))
	if err := storage.ValidateKey(key); err != nil {
		return "", err
	}
	return key, nil
}
