package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRun_Version(t *testing.T) {
	assert.NoError(t, run([]string{"--version"}))
}

func TestRun_UnknownCommand(t *testing.T) {
	assert.Error(t, run([]string{"no-such-command"}))
}
