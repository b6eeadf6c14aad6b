package dir

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"pendencias/internal"
	"pendencias/internal/config"
	"pendencias/internal/pipeline"
)

// Connector picks up exports dropped into a local directory. A file is
// identified by name and modification time, so replacing it yields a new
// inbound file.
type Connector struct {
	root string
}

func NewConnector(cfg config.Config) (*Connector, error) {
	if err := cfg.Require("LISTENER_INBOX_DIR", cfg.ListenerInboxDir); err != nil {
		return nil, err
	}
	return New(cfg.ListenerInboxDir), nil
}

func New(root string) *Connector {
	return &Connector{root: root}
}

func (c *Connector) Name() string { return "dir" }

func (c *Connector) Fetch(ctx context.Context, max int) ([]internal.InboundFile, error) {
	entries, err := os.ReadDir(c.root)
	if err != nil {
		return nil, fmt.Errorf("read inbox dir: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	out := []internal.InboundFile{}
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if max > 0 && len(out) >= max {
			break
		}
		if entry.IsDir() || pipeline.FormatFromName(entry.Name()) == "" {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return nil, err
		}
		content, err := os.ReadFile(filepath.Join(c.root, entry.Name()))
		if err != nil {
			return nil, err
		}
		out = append(out, internal.InboundFile{
			Source:     c.Name(),
			ExternalID: fmt.Sprintf("%s@%d", entry.Name(), info.ModTime().UnixNano()),
			Name:       entry.Name(),
			ReceivedAt: info.ModTime().UTC().Format(time.RFC3339),
			Content:    content,
		})
	}
	return out, nil
}
