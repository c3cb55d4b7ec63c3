package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateChannel_AcceptsLowerSnakeCase(t *testing.T) {
	assert.NoError(t, validateChannel("pair_created"))
	assert.NoError(t, validateChannel("_leading_underscore"))
}

func TestValidateChannel_RejectsInvalid(t *testing.T) {
	cases := []string{"Pair_Created", "pair-created", "1pair", "pair created", ""}
	for _, c := range cases {
		assert.Error(t, validateChannel(c), "expected error for %q", c)
	}
}
