package main

import (
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func findStringFlag(flags []cli.Flag, name string) *cli.StringFlag {
	for _, flag := range flags {
		if f, ok := flag.(*cli.StringFlag); ok && f.Name == name {
			return f
		}
	}
	return nil
}

func findIntFlag(flags []cli.Flag, name string) *cli.IntFlag {
	for _, flag := range flags {
		if f, ok := flag.(*cli.IntFlag); ok && f.Name == name {
			return f
		}
	}
	return nil
}

func TestDBFlags(t *testing.T) {
	dbFlag := findStringFlag(dbFlags(), "db")
	require.NotNil(t, dbFlag)
	assert.True(t, dbFlag.Required)
	assert.Contains(t, dbFlag.Aliases, "d")
}

func TestProviderFlags(t *testing.T) {
	flags := providerFlags()

	t.Run("host has local default", func(t *testing.T) {
		hostFlag := findStringFlag(flags, "host")
		require.NotNil(t, hostFlag)
		assert.Equal(t, "http://localhost:11434/v1", hostFlag.Value)
	})

	t.Run("api-key reads the environment", func(t *testing.T) {
		keyFlag := findStringFlag(flags, "api-key")
		require.NotNil(t, keyFlag)
		assert.Contains(t, keyFlag.EnvVars, "RECALL_API_KEY")
	})

	t.Run("models have defaults", func(t *testing.T) {
		embeddingFlag := findStringFlag(flags, "embedding-model")
		require.NotNil(t, embeddingFlag)
		assert.NotEmpty(t, embeddingFlag.Value)

		summaryFlag := findStringFlag(flags, "summary-model")
		require.NotNil(t, summaryFlag)
		assert.NotEmpty(t, summaryFlag.Value)
	})
}

func TestSetupLogger(t *testing.T) {
	t.Cleanup(func() {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))
	})

	newContext := func(level string) *cli.Context {
		app := &cli.App{
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "log-level", Value: level},
			},
		}
		var captured *cli.Context
		app.Action = func(c *cli.Context) error {
			captured = c
			return nil
		}
		require.NoError(t, app.Run([]string{"recall"}))
		return captured
	}

	t.Run("accepts known levels", func(t *testing.T) {
		for _, level := range []string{"debug", "info", "warn", "error", "INFO"} {
			assert.NoError(t, setupLogger(newContext(level)), level)
		}
	})

	t.Run("rejects unknown level", func(t *testing.T) {
		err := setupLogger(newContext("verbose"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid log level")
	})
}
