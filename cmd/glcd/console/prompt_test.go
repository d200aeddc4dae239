package console

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	c := []string{No, Yes}
	assert.Equal(t, No, normalize("", c))
	assert.Equal(t, Yes, normalize(" Y ", c))
	assert.Equal(t, No, normalize("maybe", c))
	assert.Equal(t, Yes, normalize("y", c))
}
