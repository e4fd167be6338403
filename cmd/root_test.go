package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/impactwatch/intel-cli/internal/config"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	cmds := rootCmd.Commands()

	// Collect subcommand names.
	names := make(map[string]bool)
	for _, c := range cmds {
		names[c.Name()] = true
	}

	expected := []string{"collect", "classify", "score", "validate", "costs", "config"}
	for _, name := range expected {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "intel-cli", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestCollectCommand_Flags(t *testing.T) {
	flag := collectCmd.Flags().Lookup("category")
	require.NotNil(t, flag, "collect command should have --category flag")
	assert.Equal(t, "general", flag.DefValue)

	require.NotNil(t, collectCmd.Flags().Lookup("timeframe"))
	require.NotNil(t, collectCmd.Flags().Lookup("max-results"))
	require.NotNil(t, collectCmd.Flags().Lookup("query"))
}

func TestClassifyCommand_Flags(t *testing.T) {
	require.NotNil(t, classifyCmd.Flags().Lookup("artifact"))
	require.NotNil(t, classifyCmd.Flags().Lookup("all-unclassified"))

	flag := classifyCmd.Flags().Lookup("limit")
	require.NotNil(t, flag)
	assert.Equal(t, "100", flag.DefValue)
}

func TestScoreCommand_Flags(t *testing.T) {
	require.NotNil(t, scoreCmd.Flags().Lookup("artifact"))
	require.NotNil(t, scoreCmd.Flags().Lookup("all-unscored"))
}

func TestRedact(t *testing.T) {
	assert.Equal(t, "", redact(""))
	assert.Equal(t, "[redacted]", redact("sk-ant-secret"))
}

func TestInitStore_UnsupportedDriver(t *testing.T) {
	orig := cfg
	t.Cleanup(func() { cfg = orig })

	cfg = &config.Config{}
	cfg.Store.Driver = "oracle"

	_, err := initStore(t.Context())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported store driver")
}

func TestInitStore_SQLiteDefaultPath(t *testing.T) {
	orig := cfg
	t.Cleanup(func() { cfg = orig })

	cfg = &config.Config{}
	cfg.Store.Driver = "sqlite"
	cfg.Store.SQLitePath = t.TempDir() + "/cmd-test.db"

	st, err := initStore(t.Context())
	require.NoError(t, err)
	require.NoError(t, st.Close())
}
