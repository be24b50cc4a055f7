package utils

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateUsername(t *testing.T) {
	pattern := regexp.MustCompile(`^[a-z]+_[a-z]+_\d{4}$`)
	for i := 0; i < 20; i++ {
		name, err := GenerateUsername()
		require.NoError(t, err)
		assert.Regexp(t, pattern, name)
	}
}

func TestNormalizeUsername(t *testing.T) {
	assert.Equal(t, "alice_01", NormalizeUsername(" @Alice_01 "))
	assert.Equal(t, "bob", NormalizeUsername("b.o-b"))
	assert.Equal(t, "", NormalizeUsername("@!!"))
}
