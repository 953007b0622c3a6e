package download

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultStrategies(t *testing.T) {
	strategies := DefaultStrategies("360p")
	require.Len(t, strategies, 3)

	assert.Equal(t, "merged-capped", strategies[0].Name)
	assert.Contains(t, strategies[0].Format, "height<=360")
	assert.Contains(t, strategies[0].ExtraArgs, "--merge-output-format")

	assert.Equal(t, "single-file-capped", strategies[1].Name)
	assert.Contains(t, strategies[1].Format, "height<=360")

	// Last rung has no quality cap at all
	assert.Equal(t, "any-best", strategies[2].Name)
	assert.Equal(t, "best", strategies[2].Format)
}

func TestDefaultStrategies_QualityHeights(t *testing.T) {
	assert.Contains(t, DefaultStrategies("720p")[0].Format, "height<=720")
	assert.Contains(t, DefaultStrategies("1080p")[0].Format, "height<=1080")
	assert.Contains(t, DefaultStrategies("144p")[0].Format, "height<=144")

	// Unknown labels fall back to 360p
	assert.Contains(t, DefaultStrategies("4k")[0].Format, "height<=360")
	assert.Contains(t, DefaultStrategies("")[0].Format, "height<=360")
}
