package listener

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"pendencias/internal/config"
	"pendencias/internal/connectors/dir"
	"pendencias/internal/pipeline"
	"pendencias/internal/storage"
)

const turmaCSV = "Aluno,Equipe,Supervisor,Tutor,Último acesso,Módulo 1,\n" +
	",,,,,Tarefa,Fórum\n" +
	"Ana,A,S,Tu,2024-01-01,AG,NA\n"

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("database/sql.(*DB).connectionOpener"))
}

func setup(t *testing.T) (config.Config, *storage.DB) {
	t.Helper()
	cfg, err := config.Load()
	require.NoError(t, err)

	root := t.TempDir()
	cfg.DBPath = filepath.Join(root, "app.db")
	cfg.RawDir = filepath.Join(root, "raw")
	cfg.OutputDir = filepath.Join(root, "out")
	cfg.ListenerInboxDir = filepath.Join(root, "inbox")
	cfg.ListenerProvider = "dir"
	cfg.ListenerAutoExport = true
	require.NoError(t, os.MkdirAll(cfg.ListenerInboxDir, 0o755))

	db, err := storage.Open(cfg.DBPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return cfg, db
}

func TestRunOnceProcessesAndExports(t *testing.T) {
	cfg, db := setup(t)
	require.NoError(t, os.WriteFile(filepath.Join(cfg.ListenerInboxDir, "turma 1.csv"), []byte(turmaCSV), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.ListenerInboxDir, "vazio.csv"), []byte("so um cabecalho\n"), 0o644))

	svc := NewService(db, cfg, zap.NewNop())
	res, err := svc.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, CycleResult{Fetched: 2, Stored: 2, Processed: 1, Failed: 1, Exported: 1}, res)

	exported, err := db.ListInboundByStatus("exported", 10)
	require.NoError(t, err)
	require.Len(t, exported, 1)

	out := filepath.Join(cfg.OutputDir, "listener", "1_turma_1.csv")
	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()
	records, err := pipeline.ReadCSV(f, ',')
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "Ana", records[0].Student)

	last, err := db.GetMetadata(lastCycleKey)
	require.NoError(t, err)
	assert.NotNil(t, last)

	res, err = svc.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, CycleResult{Fetched: 2}, res)
}

func TestRunOnceWithInjectedSource(t *testing.T) {
	cfg, db := setup(t)
	cfg.ListenerAutoExport = false
	other := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(other, "turma.csv"), []byte(turmaCSV), 0o644))

	res, err := NewService(db, cfg, nil).WithSource(dir.New(other)).RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Processed)
	assert.Zero(t, res.Exported)

	processed, err := db.ListInboundByStatus("processed", 10)
	require.NoError(t, err)
	assert.Len(t, processed, 1)
}

func TestRunOnceIgnoresOtherSources(t *testing.T) {
	cfg, db := setup(t)
	cfg.ListenerProcessBatch = 1
	cfg.ListenerAutoExport = false
	for _, id := range []string{"m1", "m2", "m3"} {
		_, err := db.UpsertInbound("gmail", id, "old.csv", "2000-01-01T00:00:00Z", "h", "/nowhere/old.csv", "fetched")
		require.NoError(t, err)
	}
	require.NoError(t, os.WriteFile(filepath.Join(cfg.ListenerInboxDir, "turma.csv"), []byte(turmaCSV), 0o644))

	res, err := NewService(db, cfg, nil).RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Processed)
	assert.Zero(t, res.Failed)

	stale, err := db.ListInboundBySource("gmail", "fetched", 10)
	require.NoError(t, err)
	assert.Len(t, stale, 3)
}

func TestRunStopsOnCancel(t *testing.T) {
	cfg, db := setup(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.NoError(t, NewService(db, cfg, zap.NewNop()).Run(ctx))
}

func TestUnknownProvider(t *testing.T) {
	cfg, db := setup(t)
	cfg.ListenerProvider = "pigeon"

	_, err := NewService(db, cfg, nil).RunOnce(context.Background())
	assert.Error(t, err)
}
