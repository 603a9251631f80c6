package filters

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateImageBounds(t *testing.T) {
	require.NoError(t, validateImageBounds(1024, 512))
	assert.ErrorIs(t, validateImageBounds(0, 10), ErrImageBounds)
	assert.ErrorIs(t, validateImageBounds(maxImageDimension+1, 4), ErrImageBounds)

	width := int64(20000)
	height := maxImagePixels/width + 1
	require.LessOrEqual(t, height, int64(maxImageDimension))
	assert.ErrorIs(t, validateImageBounds(width, height), ErrImageBounds)
}
