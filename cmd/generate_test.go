package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/examgen/internal/config"
)

func TestGenerateConfigLeavesAppConfigUntouched(t *testing.T) {
	loaded := config.Default()
	prev := appConfig
	appConfig = &loaded
	t.Cleanup(func() { appConfig = prev })

	flag := generateCmd.Flags().Lookup("attempts")
	require.NotNil(t, flag)
	require.NoError(t, generateCmd.Flags().Set("attempts", "3"))
	t.Cleanup(func() {
		_ = flag.Value.Set(flag.DefValue)
		flag.Changed = false
	})

	cfg := generateConfig(generateCmd)
	assert.Equal(t, 3, cfg.Generation.Attempts)
	assert.Equal(t, 1, appConfig.Generation.Attempts, "flag must not leak into the loaded config")

	// A later command in the same process sees the loaded value.
	assert.Equal(t, 1, commandConfig().Generation.Attempts)
}
