package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValidCategory(t *testing.T) {
	for _, c := range Categories {
		assert.True(t, IsValidCategory(string(c)), "категория %s", c)
	}

	assert.False(t, IsValidCategory("furniture"))
	assert.False(t, IsValidCategory(""))
	assert.False(t, IsValidCategory("TOY"))
}
