package gcs

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewValidatesArguments(t *testing.T) {
	t.Parallel()

	_, err := New(nil, "bucket")
	require.Error(t, err)
}
