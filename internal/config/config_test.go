package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ",", cfg.Delimiter)
	assert.Equal(t, 2, cfg.HeaderRows)
	assert.False(t, cfg.TreatBlankAsPending)
	assert.Equal(t, "General", cfg.DefaultModule)
	assert.Equal(t, []int{0, 1, 2, 3, 4}, cfg.IdentityPositions)
	assert.Contains(t, cfg.ExclusionTokens, "NOTA")
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("DELIMITER", ";")
	t.Setenv("HEADER_ROWS", "1")
	t.Setenv("TREAT_BLANK_AS_PENDING", "yes")
	t.Setenv("IDENTITY_TUTOR", "Tutor, Mentor ,")
	t.Setenv("IDENTITY_POSITIONS", "2,0")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ";", cfg.Delimiter)
	assert.Equal(t, 1, cfg.HeaderRows)
	assert.True(t, cfg.TreatBlankAsPending)
	assert.Equal(t, []string{"Tutor", "Mentor"}, cfg.IdentityTutor)
	assert.Equal(t, []int{2, 0}, cfg.IdentityPositions)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Setenv("DELIMITER", "|")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("DELIMITER", ",")
	t.Setenv("HEADER_ROWS", "3")
	_, err = Load()
	assert.Error(t, err)
}

func TestLoadYAMLOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pendencias.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
delimiter: ";"
default_module: Geral
treat_blank_as_pending: true
exclusion_tokens: [NOTA, CONCEITO]
identity:
  student: [Cursista]
  positions: [1, 0]
`), 0o644))
	t.Setenv("PENDENCIAS_CONFIG", path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ";", cfg.Delimiter)
	assert.Equal(t, "Geral", cfg.DefaultModule)
	assert.True(t, cfg.TreatBlankAsPending)
	assert.Equal(t, []string{"NOTA", "CONCEITO"}, cfg.ExclusionTokens)
	assert.Equal(t, []string{"Cursista"}, cfg.IdentityStudent)
	assert.Equal(t, []int{1, 0}, cfg.IdentityPositions)
	assert.Equal(t, []string{"Tutor", "Tutora"}, cfg.IdentityTutor)
}

func TestLoadMissingYAML(t *testing.T) {
	t.Setenv("PENDENCIAS_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))
	_, err := Load()
	assert.Error(t, err)
}

func TestRequire(t *testing.T) {
	var cfg Config
	assert.Error(t, cfg.Require("IMAP_HOST", " "))
	assert.NoError(t, cfg.Require("IMAP_HOST", "imap.example.com"))
}
