package connectors

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"

	"pendencias/internal"
	"pendencias/internal/storage"
)

type FileStoreService struct {
	db     *storage.DB
	rawDir string
}

func NewFileStoreService(db *storage.DB, rawDir string) *FileStoreService {
	return &FileStoreService{db: db, rawDir: rawDir}
}

// Store keeps the file content under its hash, keeping the extension the
// decoder chain orders by, and records it as fetched.
func (s *FileStoreService) Store(file internal.InboundFile) (internal.InboundRow, error) {
	hashBytes := sha256.Sum256(file.Content)
	hash := hex.EncodeToString(hashBytes[:])

	if err := os.MkdirAll(s.rawDir, 0o755); err != nil {
		return internal.InboundRow{}, err
	}

	rawPath := filepath.Join(s.rawDir, hash+strings.ToLower(filepath.Ext(file.Name)))
	if _, err := os.Stat(rawPath); os.IsNotExist(err) {
		if err := os.WriteFile(rawPath, file.Content, 0o644); err != nil {
			return internal.InboundRow{}, err
		}
	}

	return s.db.UpsertInbound(file.Source, file.ExternalID, file.Name, file.ReceivedAt, hash, rawPath, "fetched")
}
