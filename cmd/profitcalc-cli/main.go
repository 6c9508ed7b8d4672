// Command profitcalc-cli runs the profit calculation over local CSV files.
//
//	profitcalc-cli -month 2025-07 makad_a_m=ledger.csv expense_a_m=tx.csv
//	profitcalc-cli -month 2025-07 -xlsx report.xlsx makad_a_m=ledger.csv
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"profitcalc/internal/backend"
	"profitcalc/internal/classify"
	"profitcalc/internal/cli"
	"profitcalc/internal/config"
	"profitcalc/internal/core"
	"profitcalc/internal/export"
	"profitcalc/internal/ingest"
	applog "profitcalc/internal/log"
	"profitcalc/internal/services"
	"profitcalc/internal/storage"
)

func main() {
	cli.LoadEnvFile()
	if err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(os.Stderr, "profitcalc-cli:", err)
		}
		os.Exit(2)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("profitcalc-cli", flag.ContinueOnError)
	fs.SetOutput(stderr)
	month := fs.String("month", "", "target month, YYYY-MM")
	xlsxPath := fs.String("xlsx", "", "write the report workbook to `path` instead of printing JSON")
	save := fs.Bool("save", false, "save the month to the backend configured by the environment")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "usage: profitcalc-cli -month YYYY-MM [-xlsx out.xlsx] [-save] key=file.csv ...\n\nkeys: %s\n\n", joinKeys())
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, cfgErr := cli.LoadAndValidateConfig()
	logger := newLogger(cfg, stderr)
	if cfgErr != nil {
		if *save {
			return cfgErr
		}
		logger.Warn("Using default configuration", applog.FieldError, cfgErr)
		cfg = nil
	}

	uploads, err := readUploads(fs.Args())
	if err != nil {
		return err
	}

	var (
		store storage.MonthStore
		opts  []services.ServiceOption
	)
	if cfg != nil {
		opts = append(opts, services.WithLimits(ingest.Limits{MaxBytes: cfg.MaxUploadBytes(), MaxRows: cfg.MaxRows}))
	}
	if *save {
		bcfg, err := backend.FromAppConfig(cfg)
		if err != nil {
			return err
		}
		res, err := backend.NewFactory(logger.Slog()).CreateBackend(ctx, bcfg)
		if err != nil {
			return err
		}
		defer func() {
			if err := res.Cleanup(); err != nil {
				logger.Warn("Backend cleanup error", applog.FieldError, err)
			}
		}()
		store = res.Backend.Store
		opts = append(opts, services.WithArchiver(res.Backend.Archiver))
		if res.Backend.AMQP != nil {
			opts = append(opts, services.WithPublisher(res.Backend.AMQP))
		}
	}

	svc := services.NewProfitService(classify.NewEngine(logger.Slog()), store, logger, opts...)
	res, err := svc.Process(ctx, services.ProcessRequest{TargetMonth: core.Period(*month), Uploads: uploads})
	if err != nil {
		return err
	}
	for _, src := range res.Sources {
		if src.Error != "" {
			logger.Warn("Source not processed", applog.FieldFileKey, string(src.Key), applog.FieldError, src.Error)
		}
	}

	if *xlsxPath != "" {
		return writeWorkbook(*xlsxPath, res)
	}
	return writeJSON(stdout, res)
}

func newLogger(cfg *config.Config, out io.Writer) *applog.Logger {
	lc := applog.DefaultConfig()
	lc.Component = "cli"
	lc.Output = out
	lc.Level = applog.ParseLevel("warn")
	if cfg != nil {
		lc.Level = applog.ParseLevel(cfg.LogLevel)
		lc.Format = cfg.LogFormat
	}
	return applog.New(lc)
}

// readUploads turns key=path arguments into uploads.
func readUploads(args []string) ([]services.Upload, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("no input files; pass key=file.csv with key one of %s", joinKeys())
	}
	seen := map[core.FileKey]bool{}
	uploads := make([]services.Upload, 0, len(args))
	for _, arg := range args {
		key, path, ok := strings.Cut(arg, "=")
		if !ok || key == "" || path == "" {
			return nil, fmt.Errorf("argument %q: want key=path", arg)
		}
		if _, _, err := core.ParseFileKey(key); err != nil {
			return nil, fmt.Errorf("argument %q: %w", arg, err)
		}
		fk := core.FileKey(key)
		if seen[fk] {
			return nil, fmt.Errorf("file key %s given twice", key)
		}
		seen[fk] = true
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", key, err)
		}
		uploads = append(uploads, services.Upload{Key: fk, Filename: filepath.Base(path), Data: data})
	}
	return uploads, nil
}

func writeJSON(w io.Writer, res *services.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(map[string]any{
		"target_month":     res.TargetMonth,
		"batch_id":         res.BatchID,
		"results":          res.Results,
		"spreadsheet_data": classify.Sanitize(res.Spreadsheet),
		"summary":          classify.Sanitize(res.Summary),
		"uploaded_files":   res.UploadedFiles,
		"saved":            res.Saved,
		"sources":          res.Sources,
	})
}

func writeWorkbook(path string, res *services.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create workbook: %w", err)
	}
	rows := classify.Sanitize(res.Spreadsheet).([]core.ReportRow)
	if err := export.WriteWorkbook(f, string(res.TargetMonth), rows); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func joinKeys() string {
	keys := make([]string, 0, len(core.UploadKeys()))
	for _, k := range core.UploadKeys() {
		keys = append(keys, string(k))
	}
	return strings.Join(keys, ", ")
}
