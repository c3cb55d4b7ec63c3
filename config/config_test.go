package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnvInt_FallsBackOnMissingOrInvalid(t *testing.T) {
	os.Unsetenv("TEST_ENV_INT")
	assert.Equal(t, 42, envInt("TEST_ENV_INT", 42))

	os.Setenv("TEST_ENV_INT", "not-a-number")
	defer os.Unsetenv("TEST_ENV_INT")
	assert.Equal(t, 42, envInt("TEST_ENV_INT", 42))

	os.Setenv("TEST_ENV_INT", "7")
	assert.Equal(t, 7, envInt("TEST_ENV_INT", 42))
}

func TestEnvBool_ParsesOrFallsBack(t *testing.T) {
	os.Unsetenv("TEST_ENV_BOOL")
	assert.True(t, envBool("TEST_ENV_BOOL", true))

	os.Setenv("TEST_ENV_BOOL", "false")
	defer os.Unsetenv("TEST_ENV_BOOL")
	assert.False(t, envBool("TEST_ENV_BOOL", true))
}

func TestEnvList_SplitsAndTrims(t *testing.T) {
	os.Setenv("TEST_ENV_LIST", "http://a:26657, http://b:26657 ,,http://c:26657")
	defer os.Unsetenv("TEST_ENV_LIST")

	got := envList("TEST_ENV_LIST")
	assert.Equal(t, []string{"http://a:26657", "http://b:26657", "http://c:26657"}, got)
}

func TestEnvList_EmptyWhenUnset(t *testing.T) {
	os.Unsetenv("TEST_ENV_LIST_MISSING")
	assert.Nil(t, envList("TEST_ENV_LIST_MISSING"))
}
