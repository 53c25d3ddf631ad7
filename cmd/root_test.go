package cmd

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandRegistration(t *testing.T) {
	expected := []string{
		"deploy", "ingest", "curate", "mart", "run",
		"schedule", "serve", "setup", "status", "verify", "version",
	}

	registered := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		registered[c.Name()] = true
	}

	for _, name := range expected {
		assert.True(t, registered[name], "command %q not registered", name)
	}
}

func TestPersistentFlags(t *testing.T) {
	tests := []struct {
		flag      string
		shorthand string
	}{
		{"env", "e"},
		{"verbose", "v"},
		{"quiet", "q"},
	}

	for _, tt := range tests {
		f := rootCmd.PersistentFlags().Lookup(tt.flag)
		require.NotNil(t, f, tt.flag)
		assert.Equal(t, tt.shorthand, f.Shorthand, tt.flag)
	}
}

func TestCommandFlags(t *testing.T) {
	tests := []struct {
		command  string
		flag     string
		defValue string
	}{
		{"deploy", "skip-masking", "false"},
		{"ingest", "list", "false"},
		{"curate", "full-refresh", "false"},
		{"run", "full-refresh", "false"},
		{"schedule", "addr", ""},
		{"serve", "addr", ""},
		{"status", "limit", "10"},
	}

	byName := map[string]*pflag.FlagSet{}
	for _, c := range rootCmd.Commands() {
		byName[c.Name()] = c.Flags()
	}

	for _, tt := range tests {
		t.Run(tt.command+" --"+tt.flag, func(t *testing.T) {
			flags, ok := byName[tt.command]
			require.True(t, ok, "command %q not registered", tt.command)

			f := flags.Lookup(tt.flag)
			require.NotNil(t, f)
			assert.Equal(t, tt.defValue, f.DefValue)
		})
	}
}

func TestStatusLimitFlagParsing(t *testing.T) {
	var limit int
	fs := pflag.NewFlagSet("status", pflag.ContinueOnError)
	fs.IntVarP(&limit, "limit", "n", 10, "")

	require.NoError(t, fs.Parse([]string{"-n", "25"}))
	assert.Equal(t, 25, limit)
}
