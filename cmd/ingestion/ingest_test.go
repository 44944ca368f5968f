package main

import (
	"encoding/json"
	"testing"

	"github.com/amankumarsingh77/dubbing-pipeline/internal/config"
	"github.com/amankumarsingh77/dubbing-pipeline/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIngestOptionsValidate(t *testing.T) {
	o := DefaultIngestOptions()
	assert.Error(t, o.Validate())

	o.Key = "audio_inputs/talk.mp3"
	assert.NoError(t, o.Validate())

	o.Target = "kafka"
	assert.Error(t, o.Validate())
}

func TestIngestPayloadParsesAsNotification(t *testing.T) {
	o := DefaultIngestOptions()
	o.Key = "audio_inputs/talk.mp3"
	o.Environment = "beta"
	o.Languages = []string{"es", "fr"}

	cfg := &config.Config{S3: config.S3Config{InputBucket: "media-in"}}
	data, err := o.payload(cfg)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.NotContains(t, raw, "Records")

	n, err := models.ParseNotification(data)
	require.NoError(t, err)
	events, err := n.Events()
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "media-in", events[0].Bucket)
	assert.Equal(t, "audio_inputs/talk.mp3", events[0].Key)
	assert.Equal(t, models.EventObjectCreated, events[0].EventType)
	assert.Equal(t, "beta", events[0].Environment)
	assert.Equal(t, []string{"es", "fr"}, events[0].TargetLanguages)
}

func TestIngestionCommandFlags(t *testing.T) {
	cmd := NewIngestionCommand()
	for _, name := range []string{"config", "bucket", "key", "env", "langs", "target", "wait"} {
		assert.NotNil(t, cmd.Flags().Lookup(name), name)
	}
}
