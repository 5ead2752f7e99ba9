package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandsRegistered(t *testing.T) {
	for _, path := range [][]string{
		{"collection", "ensure"},
		{"collection", "recreate"},
		{"ingest"},
		{"seed"},
		{"embed"},
		{"recommend"},
		{"eval"},
	} {
		cmd, _, err := rootCmd.Find(path)
		require.NoError(t, err, path)
		assert.Equal(t, path[len(path)-1], cmd.Name())
	}
}

func TestFlagDefaults(t *testing.T) {
	assert.Equal(t, "5", evalCmd.Flags().Lookup("k").DefValue)
	assert.Equal(t, "0", embedCmd.Flags().Lookup("batch-size").DefValue)
	assert.Equal(t, "true", recommendCmd.Flags().Lookup("rerank").DefValue)
}

func TestArgumentValidation(t *testing.T) {
	assert.Error(t, ingestCmd.Args(ingestCmd, nil))
	assert.NoError(t, ingestCmd.Args(ingestCmd, []string{"계란"}))
	assert.Error(t, embedCmd.Args(embedCmd, []string{"extra"}))
}

func TestCheckTopK(t *testing.T) {
	assert.NoError(t, checkTopK(0, 50))
	assert.NoError(t, checkTopK(50, 50))
	assert.Error(t, checkTopK(51, 50))
	assert.Error(t, checkTopK(1<<40, 50))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "계란찜", truncate("계란찜", 5))
	assert.Equal(t, "새우두…", truncate("새우두부계란찜", 4))
}
