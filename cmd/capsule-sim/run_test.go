package main

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/filecoin-project/go-state-types/rt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DianaJonathan/timecapsule/client/config"
)

func TestRunScenario(t *testing.T) {
	var out bytes.Buffer
	err := runScenario(context.Background(), &out, config.DefaultConfig(), runOptions{
		payload:  "hello capsule",
		delay:    time.Hour,
		withHeir: true,
	})
	require.NoError(t, err)

	text := out.String()
	assert.Contains(t, text, "capsule 0 owner")
	assert.Contains(t, text, "word 3: b")
	assert.Contains(t, text, "capsule 0 unlocked")
	assert.Contains(t, text, "capsule 0 decrypted")
	assert.Contains(t, text, `plaintext "hello capsule"`)
	assert.Contains(t, text, "event epoch 1: capsule 0 created")
	assert.Contains(t, text, "unlocked by")
}

func TestRunScenarioBadgerStore(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.DataDir = t.TempDir()

	var out bytes.Buffer
	require.NoError(t, runScenario(context.Background(), &out, cfg, runOptions{payload: "hi", delay: time.Minute}))
	assert.Contains(t, out.String(), `plaintext "hi"`)
}

func TestRunSoak(t *testing.T) {
	var out bytes.Buffer
	err := runSoak(context.Background(), &out, config.DefaultConfig(), soakOptions{
		accounts: 5,
		seed:     3,
		rate:     0.3,
		maxDelay: time.Minute,
		ticks:    60,
	})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "blocks=60 capsules=")
}

func TestParseActorLogLevel(t *testing.T) {
	lvl, err := parseActorLogLevel("WARN")
	require.NoError(t, err)
	assert.Equal(t, rt.WARN, lvl)

	_, err = parseActorLogLevel("loud")
	require.Error(t, err)
}
