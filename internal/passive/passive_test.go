package passive

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoOpReturnsNothing(t *testing.T) {
	names, err := NoOp{}.FetchParams(context.Background(), "example.com")
	require.NoError(t, err)
	assert.Empty(t, names)
}
