package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVerboseDefault(t *testing.T) {
	SetVerbose(false)
	assert.False(t, IsVerbose())
}

func TestSetVerbose(t *testing.T) {
	SetVerbose(false)

	SetVerbose(true)
	assert.True(t, IsVerbose())

	SetVerbose(false)
	assert.False(t, IsVerbose())
}

func TestSetDebug(t *testing.T) {
	SetDebug(false)
	assert.False(t, IsDebug())

	SetDebug(true)
	assert.True(t, IsDebug())

	SetDebug(false)
}
