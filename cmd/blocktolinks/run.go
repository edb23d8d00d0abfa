package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"
	"gorm.io/driver/postgres"

	blocktolinks "github.com/marcelofinamorvieira/datocms-plugin-block-to-links"
	"github.com/marcelofinamorvieira/datocms-plugin-block-to-links/pkg/checkpoint"
	"github.com/marcelofinamorvieira/datocms-plugin-block-to-links/pkg/connection"
	"github.com/marcelofinamorvieira/datocms-plugin-block-to-links/pkg/constants"
	"github.com/marcelofinamorvieira/datocms-plugin-block-to-links/pkg/logger"
	"github.com/marcelofinamorvieira/datocms-plugin-block-to-links/pkg/logger/slog"
	"github.com/marcelofinamorvieira/datocms-plugin-block-to-links/pkg/progress"
)

const shutdownTimeout = 5 * time.Second

// Main parses args, runs the command and writes its report to stdout.
// It returns an error when the command could not run or the conversion
// did not succeed.
func Main(ctx context.Context, args []string, stdout io.Writer) error {
	command, config, err := Parse(args)
	if err != nil {
		return err
	}
	return Run(ctx, command, config, stdout)
}

func Run(ctx context.Context, command string, config *Config, stdout io.Writer) error {
	log, closeLog, err := openLogger(config)
	if err != nil {
		return fmt.Errorf("failed to open log: %w", err)
	}
	defer closeLog()

	conn, err := newConnection(config, log)
	if err != nil {
		return err
	}
	sourceID, err := resolveSource(ctx, conn, config.SourceType)
	if err != nil {
		return err
	}

	options := []blocktolinks.Option{blocktolinks.WithLogger(log)}
	store, closeStore, err := openCheckpoints(ctx, config)
	if err != nil {
		return err
	}
	defer closeStore()
	if store != nil {
		options = append(options, blocktolinks.WithCheckpoints(store))
	}

	report := logProgress(log)
	if config.ProgressAddr != "" {
		b := progress.NewBroadcaster(log)
		stop := serveProgress(config.ProgressAddr, b, log)
		defer stop()
		report = progress.Multi(report, b.Func())
	}
	options = append(options, blocktolinks.WithProgress(report))

	converter := blocktolinks.NewConverter(conn, config.Options(), options...)

	switch command {
	case CommandAnalyze:
		res, err := converter.Analyze(ctx, sourceID)
		if err != nil {
			return err
		}
		return writeAnalysis(stdout, res)
	case CommandConvert:
		res := converter.Convert(ctx, sourceID)
		if err := writeConversion(stdout, res); err != nil {
			return err
		}
		if !res.Success {
			return fmt.Errorf("conversion failed: %s", res.Error)
		}
		return nil
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

const logPermission = 0o664

// openLogger builds the zerolog logger, or the slog text logger for
// LogFormatText.
func openLogger(config *Config) (logger.Logger, func(), error) {
	if config.LogFormat != LogFormatText {
		logData, err := logger.New().FromPath(config.LogPath).Verbose(config.Verbose).Make()
		if err != nil {
			return nil, nil, err
		}
		return logData, func() { logData.Close() }, nil
	}

	var w io.Writer = os.Stderr
	closeLog := func() {}
	if config.LogPath != "" {
		f, err := os.OpenFile(config.LogPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, logPermission)
		if err != nil {
			return nil, nil, err
		}
		w = f
		closeLog = func() { f.Close() }
	}
	return slog.NewText(w, config.Verbose).With("source", config.SourceType), closeLog, nil
}

func newConnection(config *Config, log logger.Logger) (*connection.HTTPConnection, error) {
	u, err := url.Parse(config.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	conf := connection.NewConfig(u, config.Token)
	conf.Logger = log
	if config.PageSize > 0 {
		conf.PageSize = config.PageSize
	}
	return connection.NewHTTPConnection(conf)
}

// resolveSource accepts a block type id or api key.
func resolveSource(ctx context.Context, conn connection.Connection, source string) (string, error) {
	types, err := conn.ListItemTypes(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to list item types: %w", err)
	}
	for _, it := range types {
		if it.ID == source || strings.EqualFold(it.APIKey, source) {
			return it.ID, nil
		}
	}
	return "", fmt.Errorf("%s: %w", source, constants.ErrTypeNotFound)
}

func openCheckpoints(ctx context.Context, config *Config) (checkpoint.Store, func(), error) {
	switch {
	case config.CheckpointDSN != "":
		store, err := checkpoint.OpenSQLStore(postgres.Open(config.CheckpointDSN))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open checkpoint database: %w", err)
		}
		if err := store.Migrate(ctx); err != nil {
			store.Close()
			return nil, nil, err
		}
		return store, func() { store.Close() }, nil
	case config.CheckpointDir != "":
		store, err := checkpoint.NewFileStore(config.CheckpointDir)
		if err != nil {
			return nil, nil, err
		}
		return store, func() {}, nil
	default:
		return nil, func() {}, nil
	}
}

func serveProgress(addr string, b *progress.Broadcaster, log logger.Logger) func() {
	r := mux.NewRouter()
	r.Handle("/progress", b)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("progress server stopped", "addr", addr, "error", err)
		}
	}()
	log.Info("serving progress", "addr", addr)

	return func() {
		b.Close()
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Warn("progress server shutdown", "error", err)
		}
	}
}

func logProgress(log logger.Logger) progress.Func {
	return func(step, total int, description string, percentage int, detail string) {
		log.Debug(description, "step", step, "total", total, "percentage", percentage, "detail", detail)
	}
}

type analysisReport struct {
	SourceType           string        `json:"source_type"`
	Fields               int           `json:"fields"`
	ReferencingFields    []fieldReport `json:"referencing_fields"`
	TotalAffectedRecords int           `json:"total_affected_records"`
	InstanceCount        int           `json:"instance_count"`
}

type fieldReport struct {
	FieldKey  string   `json:"field"`
	FieldType string   `json:"field_type"`
	Localized bool     `json:"localized"`
	Nested    bool     `json:"nested"`
	Paths     []string `json:"paths"`
}

func writeAnalysis(w io.Writer, res *blocktolinks.AnalysisResult) error {
	out := analysisReport{
		SourceType:           res.SourceType.APIKey,
		Fields:               len(res.Fields),
		ReferencingFields:    []fieldReport{},
		TotalAffectedRecords: res.TotalAffectedRecords,
		InstanceCount:        res.InstanceCount,
	}
	for _, f := range res.ReferencingFields {
		out.ReferencingFields = append(out.ReferencingFields, fieldReport{
			FieldKey:  f.FieldKey,
			FieldType: string(f.FieldType),
			Localized: f.Localized,
			Nested:    f.Nested,
			Paths:     f.Paths,
		})
	}
	return writeJSON(w, out)
}

type conversionReport struct {
	Success             bool           `json:"success"`
	DestinationType     string         `json:"destination_type,omitempty"`
	MigratedRecordCount int            `json:"migrated_record_count"`
	ConvertedFieldCount int            `json:"converted_field_count"`
	Error               string         `json:"error,omitempty"`
	Warnings            []string       `json:"warnings,omitempty"`
	FailedRecords       []recordReport `json:"failed_records,omitempty"`
}

type recordReport struct {
	Op          string   `json:"op"`
	RecordID    string   `json:"record_id"`
	InstanceIDs []string `json:"instance_ids,omitempty"`
	FieldKey    string   `json:"field,omitempty"`
	Error       string   `json:"error"`
}

func writeConversion(w io.Writer, res *blocktolinks.ConversionResult) error {
	out := conversionReport{
		Success:             res.Success,
		DestinationType:     res.DestinationTypeKey,
		MigratedRecordCount: res.MigratedRecordCount,
		ConvertedFieldCount: res.ConvertedFieldCount,
		Error:               res.Error,
		Warnings:            res.Warnings,
	}
	for _, f := range res.FailedRecords {
		out.FailedRecords = append(out.FailedRecords, recordReport{
			Op:          string(f.Op),
			RecordID:    f.RecordID,
			InstanceIDs: f.InstanceIDs,
			FieldKey:    f.FieldKey,
			Error:       f.Err.Error(),
		})
	}
	return writeJSON(w, out)
}

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
