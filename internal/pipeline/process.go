package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"pendencias/internal"
	"pendencias/internal/config"
	"pendencias/internal/storage"
)

// Options is everything one extraction run needs besides the input bytes.
type Options struct {
	Decode     DecodeOptions
	HeaderRows int
	Reconcile  ReconcileOptions
	Aliases    IdentityAliases
	Mode       ExtractionMode
}

func OptionsFromConfig(cfg config.Config) Options {
	aliases := IdentityAliases{
		Student:    cfg.IdentityStudent,
		Team:       cfg.IdentityTeam,
		Supervisor: cfg.IdentitySupervisor,
		Tutor:      cfg.IdentityTutor,
		LastAccess: cfg.IdentityLastAccess,
		Positions:  cfg.IdentityPositions,
	}
	delimiter := ','
	if cfg.Delimiter == ";" {
		delimiter = ';'
	}
	return Options{
		Decode: DecodeOptions{
			Delimiter: delimiter,
			Encoding:  cfg.TextEncoding,
			Format:    ParseFormat(cfg.InputFormat),
		},
		HeaderRows: cfg.HeaderRows,
		Reconcile: ReconcileOptions{
			DefaultModule: cfg.DefaultModule,
			ModuleToken:   cfg.ModuleHeaderToken,
			IdentityNames: aliases.Names(),
		},
		Aliases: aliases,
		Mode: ExtractionMode{
			Policy: ClassifierPolicy{
				ExclusionTokens:     cfg.ExclusionTokens,
				TreatBlankAsPending: cfg.TreatBlankAsPending,
				MissingTokens:       cfg.MissingTokens,
			},
			UnknownStudent: cfg.UnknownStudent,
			NoTutor:        cfg.NoTutor,
		},
	}
}

func DefaultOptions() Options {
	aliases := DefaultIdentityAliases()
	return Options{
		Decode:     DecodeOptions{Delimiter: ',', Encoding: "utf-8"},
		HeaderRows: 2,
		Reconcile:  ReconcileOptions{DefaultModule: DefaultModule, IdentityNames: aliases.Names()},
		Aliases:    aliases,
		Mode:       DefaultExtractionMode(),
	}
}

type Result struct {
	TraceID     string                   `json:"traceId"`
	Records     []internal.PendingRecord `json:"records"`
	Labels      []internal.ColumnLabel   `json:"-"`
	Diagnostics internal.Diagnostics     `json:"diagnostics"`
}

// Run is the whole extraction for one input: decode, split the header block,
// reconcile labels, resolve identity columns and scan the data rows.
func Run(name string, data []byte, opts Options) (Result, error) {
	grid, format, err := Decode(name, data, opts.Decode)
	if err != nil {
		return Result{}, err
	}
	return RunGrid(name, grid, format, opts)
}

// RunGrid is Run for an already decoded grid.
func RunGrid(name string, grid internal.Grid, format internal.InputFormat, opts Options) (Result, error) {
	if len(grid) == 0 {
		return Result{}, unreadable(name, errors.New("no rows"))
	}
	header, data, err := SplitHeader(grid, opts.HeaderRows)
	if err != nil {
		return Result{}, headerMismatch(name, err)
	}

	labels := Reconcile(header, opts.Reconcile)
	ids := ResolveIdentity(header, opts.Aliases)
	records, diag := Extract(data, labels, ids, opts.Mode)
	diag.Format = format
	diag.HeaderRows = opts.HeaderRows

	return Result{Records: records, Labels: labels, Diagnostics: diag}, nil
}

type ProcessingService struct {
	db   *storage.DB
	opts Options
	log  *zap.Logger
}

// NewProcessingService builds the service; db may be nil to skip the run ledger.
func NewProcessingService(db *storage.DB, cfg config.Config, logger *zap.Logger) *ProcessingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProcessingService{db: db, opts: OptionsFromConfig(cfg), log: logger}
}

func (s *ProcessingService) Options() Options { return s.opts }

func (s *ProcessingService) ProcessFile(ctx context.Context, name string, data []byte) (Result, error) {
	return s.ProcessFileWith(ctx, name, data, s.opts)
}

func (s *ProcessingService) ProcessFileWith(ctx context.Context, name string, data []byte, opts Options) (Result, error) {
	start := time.Now()
	traceID := uuid.NewString()
	log := s.log.With(zap.String("traceId", traceID), zap.String("source", name))
	log.Debug("processing input", zap.Int("bytes", len(data)), zap.Int("headerRows", opts.HeaderRows))

	res, err := Run(name, data, opts)
	res.TraceID = traceID
	elapsed := float64(time.Since(start).Microseconds()) / 1000

	run := internal.RunRow{
		TraceID: traceID,
		Source:  name,
		Format:  string(res.Diagnostics.Format),
		Status:  "ok",
		Timings: map[string]float64{"totalMs": elapsed},
		Counts: map[string]int{
			"records":   len(res.Records),
			"dataRows":  res.Diagnostics.DataRows,
			"truncated": res.Diagnostics.TruncatedRows,
			"labels":    res.Diagnostics.Labels,
		},
	}
	if err != nil {
		run.Status = "failed"
		run.ErrorKind = string(KindOf(err))
		run.Error = err.Error()
		log.Warn("processing failed", zap.String("kind", run.ErrorKind), zap.Error(err))
	} else {
		log.Info("processing done",
			zap.String("format", run.Format),
			zap.Int("records", len(res.Records)),
			zap.Int("dataRows", res.Diagnostics.DataRows),
			zap.Int("truncatedRows", res.Diagnostics.TruncatedRows),
			zap.String("identity", string(res.Diagnostics.Identity)),
			zap.Float64("ms", elapsed))
	}

	if s.db != nil {
		if lerr := s.db.InsertRun(ctx, run); lerr != nil {
			log.Warn("run ledger insert failed", zap.Error(lerr))
		}
	}
	if err != nil {
		return Result{TraceID: traceID}, err
	}
	return res, nil
}

// ProcessInbound runs a file fetched by a connector and moves it to
// processed or failed.
func (s *ProcessingService) ProcessInbound(ctx context.Context, row internal.InboundRow) (Result, error) {
	var res Result
	raw, err := os.ReadFile(row.RawRef)
	if err != nil {
		err = fmt.Errorf("read stored file %s: %w", row.RawRef, err)
		s.log.Warn("inbound file unreadable", zap.Int("id", row.ID), zap.Error(err))
	} else {
		res, err = s.ProcessFile(ctx, row.Name, raw)
	}
	status := "processed"
	if err != nil {
		status = "failed"
	}
	if s.db != nil {
		if uerr := s.db.UpdateInboundStatus(row.ID, status); uerr != nil && err == nil {
			return res, uerr
		}
	}
	return res, err
}
