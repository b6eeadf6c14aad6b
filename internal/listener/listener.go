package listener

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"pendencias/internal"
	"pendencias/internal/config"
	"pendencias/internal/connectors"
	dirconnector "pendencias/internal/connectors/dir"
	gmailconnector "pendencias/internal/connectors/gmail"
	imapconnector "pendencias/internal/connectors/imap"
	"pendencias/internal/pipeline"
	"pendencias/internal/storage"
	"pendencias/internal/util"
)

const lastCycleKey = "listener.lastCycle"

type Service struct {
	db        *storage.DB
	cfg       config.Config
	source    connectors.Source
	processor *pipeline.ProcessingService
	log       *zap.Logger
}

type CycleResult struct {
	Fetched   int
	Stored    int
	Processed int
	Failed    int
	Exported  int
}

func NewService(db *storage.DB, cfg config.Config, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		db:        db,
		cfg:       cfg,
		processor: pipeline.NewProcessingService(db, cfg, logger),
		log:       logger.Named("listener"),
	}
}

// WithSource replaces the provider configured by LISTENER_PROVIDER.
func (s *Service) WithSource(src connectors.Source) *Service {
	s.source = src
	return s
}

func (s *Service) Run(ctx context.Context) error {
	interval := time.Duration(s.cfg.ListenerIntervalSec) * time.Second
	if interval <= 0 {
		interval = time.Minute
	}
	for {
		if _, err := s.RunOnce(ctx); err != nil && ctx.Err() == nil {
			s.log.Error("listener cycle failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(interval):
		}
	}
}

// RunOnce fetches new files, processes everything still pending and, when
// auto export is on, writes one CSV per processed file.
func (s *Service) RunOnce(ctx context.Context) (CycleResult, error) {
	var result CycleResult
	if s.source == nil {
		src, err := s.makeSource(ctx)
		if err != nil {
			return result, err
		}
		s.source = src
	}

	fetched, err := connectors.NewFetchService(s.db, s.cfg.RawDir, s.source).FetchAndStore(ctx, s.cfg.ListenerFetchMax)
	if err != nil {
		return result, err
	}
	result.Fetched = fetched.Fetched
	result.Stored = fetched.Stored

	batch := s.cfg.ListenerProcessBatch
	if batch <= 0 {
		batch = 20
	}
	pending, err := s.db.ListInboundBySource(s.source.Name(), "fetched", batch)
	if err != nil {
		return result, err
	}

	for _, row := range pending {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		res, err := s.processor.ProcessInbound(ctx, row)
		if err != nil {
			result.Failed++
			s.log.Warn("inbound file failed",
				zap.Int("id", row.ID),
				zap.String("name", row.Name),
				zap.String("kind", string(pipeline.KindOf(err))),
				zap.Error(err))
			continue
		}
		result.Processed++

		if s.cfg.ListenerAutoExport {
			if err := s.export(row, res.Records); err != nil {
				return result, err
			}
			result.Exported++
		}
	}

	if err := s.db.SetMetadata(lastCycleKey, time.Now().UTC().Format(time.RFC3339)); err != nil {
		return result, err
	}

	s.log.Info("listener cycle done",
		zap.String("source", s.source.Name()),
		zap.Int("fetched", result.Fetched),
		zap.Int("stored", result.Stored),
		zap.Int("processed", result.Processed),
		zap.Int("failed", result.Failed),
		zap.Int("exported", result.Exported))
	return result, nil
}

func (s *Service) export(row internal.InboundRow, records []internal.PendingRecord) error {
	base := strings.TrimSuffix(row.Name, filepath.Ext(row.Name))
	filename := fmt.Sprintf("%d_%s.csv", row.ID, util.SanitizeFileName(base))
	outputPath := filepath.Join(s.cfg.OutputDir, "listener", filename)

	delimiter := ','
	if s.cfg.Delimiter == ";" {
		delimiter = ';'
	}
	if err := pipeline.ExportRecordsToCSV(records, outputPath, delimiter); err != nil {
		return err
	}
	return s.db.UpdateInboundStatus(row.ID, "exported")
}

func (s *Service) makeSource(ctx context.Context) (connectors.Source, error) {
	provider := strings.ToLower(strings.TrimSpace(s.cfg.ListenerProvider))
	switch provider {
	case "", "dir":
		return dirconnector.NewConnector(s.cfg)
	case "gmail":
		return gmailconnector.NewConnector(ctx, s.cfg)
	case "imap":
		return imapconnector.NewConnector(s.cfg)
	default:
		return nil, fmt.Errorf("unsupported listener provider: %s", provider)
	}
}
