package connectors

import (
	"context"

	"pendencias/internal/storage"
)

type FetchService struct {
	db     *storage.DB
	source Source
	store  *FileStoreService
}

type FetchResult struct {
	Fetched int
	Stored  int
}

func NewFetchService(db *storage.DB, rawDir string, source Source) *FetchService {
	return &FetchService{
		db:     db,
		source: source,
		store:  NewFileStoreService(db, rawDir),
	}
}

// FetchAndStore pulls files from the source and stores the ones not seen
// before. Already known files keep their status.
func (s *FetchService) FetchAndStore(ctx context.Context, max int) (FetchResult, error) {
	files, err := s.source.Fetch(ctx, max)
	if err != nil {
		return FetchResult{}, err
	}

	stored := 0
	for _, f := range files {
		known, err := s.db.GetInbound(f.Source, f.ExternalID)
		if err != nil {
			return FetchResult{}, err
		}
		if known != nil {
			continue
		}
		if _, err := s.store.Store(f); err != nil {
			return FetchResult{}, err
		}
		stored++
	}

	return FetchResult{Fetched: len(files), Stored: stored}, nil
}
