package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClearDataCommandStructure(t *testing.T) {
	assert.NotNil(t, clearDataCmd)
	assert.Equal(t, "clear-data", clearDataCmd.Use)
	assert.NotNil(t, clearDataCmd.RunE)
}

func TestClearDataFlags(t *testing.T) {
	flags := clearDataCmd.Flags()

	dbFlag := flags.Lookup("db")
	assert.NotNil(t, dbFlag)

	schemaFlag := flags.Lookup("schema")
	assert.NotNil(t, schemaFlag)
	assert.Equal(t, "public", schemaFlag.DefValue)
}

func TestClearDataIsAddedToRoot(t *testing.T) {
	found := false
	for _, c := range rootCmd.Commands() {
		if c.Name() == "clear-data" {
			found = true
			break
		}
	}
	assert.True(t, found)
}
