package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, name := range []string{"serve", "compute", "export", "draft", "migrate"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "filing-assistant", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
	assert.True(t, rootCmd.SilenceUsage)
}

func TestRootCommand_LongListsSubcommands(t *testing.T) {
	for _, c := range rootCmd.Commands() {
		if c.Hidden || c.Name() == "help" || c.Name() == "completion" {
			continue
		}
		assert.True(t, strings.Contains(rootCmd.Long, c.Name()), "long help should mention %q", c.Name())
	}
}

func TestDraftCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range draftCmd.Commands() {
		names[c.Name()] = true
	}

	for _, name := range []string{"save", "load", "submit"} {
		assert.True(t, names[name], "expected draft subcommand %q not found", name)
	}
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}

func TestComputeCommand_Flags(t *testing.T) {
	for _, name := range []string{"facts", "profile", "json"} {
		assert.NotNil(t, computeCmd.Flags().Lookup(name), "compute should have --%s", name)
	}
	assert.NotNil(t, exportCmd.Flags().Lookup("out"))
	assert.NotNil(t, draftSaveCmd.Flags().Lookup("set"))
	assert.NotNil(t, draftSaveCmd.Flags().Lookup("exit"))
}
