package assets

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIcon(t *testing.T) {
	icon := Icon()
	assert.Equal(t, "scoutme.svg", icon.Name())
	assert.Contains(t, string(icon.Content()), "<svg")
}
