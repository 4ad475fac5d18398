package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "world.yaml")
	doc := `
seed: 7
world:
  width: 20
combat:
  kill_exp_per_level: 75
spawners:
  - faction: Demon
    interval_s: 5
    amount: 2
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, int64(7), cfg.Seed)
	assert.Equal(t, 20, cfg.World.Width)
	assert.Equal(t, Default().World.Height, cfg.World.Height)
	assert.Equal(t, 75, cfg.Combat.KillExpPerLevel)
	assert.Equal(t, 0.5, cfg.Combat.EscapeChance)
	require.Len(t, cfg.Spawners, 1)
	assert.Equal(t, "Demon", cfg.Spawners[0].Faction)
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("spawners:\n  - faction: Elf\n    interval_s: 0\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown faction")
	assert.Contains(t, err.Error(), "interval must be positive")
}

func TestEnvOverridesAdminKey(t *testing.T) {
	t.Setenv("WORLDSIM_ADMIN_KEY", "secret")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "secret", cfg.API.AdminKey)
}

func TestSchema(t *testing.T) {
	out, err := Schema()
	require.NoError(t, err)
	assert.Contains(t, string(out), "kill_exp_per_level")
}
