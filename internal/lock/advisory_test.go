package lock

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLockKeyFromNameIsDeterministic(t *testing.T) {
	assert.Equal(t, lockKeyFromName("pgrelay:run:nightly"), lockKeyFromName("pgrelay:run:nightly"))
	assert.NotEqual(t, lockKeyFromName("pgrelay:run:nightly"), lockKeyFromName("pgrelay:run:weekly"))
}

func TestGenerateRunLockName(t *testing.T) {
	assert.Equal(t, "pgrelay:run:nightly_sync", GenerateRunLockName("nightly sync"))
	assert.Equal(t, "pgrelay:run:clean-up__42", GenerateRunLockName("clean-up #42"))
}
