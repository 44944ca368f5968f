package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocatorStringAndParse(t *testing.T) {
	t.Parallel()

	loc := Locator{Bucket: "media-in", Key: "audio_inputs/talk.mp3"}
	assert.Equal(t, "s3://media-in/audio_inputs/talk.mp3", loc.String())

	parsed, err := ParseLocator(loc.String())
	require.NoError(t, err)
	assert.Equal(t, loc, parsed)

	bare, err := ParseLocator("beta/transcripts/x.txt")
	require.NoError(t, err)
	assert.Equal(t, Locator{Key: "beta/transcripts/x.txt"}, bare)

	_, err = ParseLocator("s3://bucket-only")
	assert.Error(t, err)
	_, err = ParseLocator("")
	assert.Error(t, err)
}
