package logging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContextValues(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, GetTaskID(ctx))
	assert.Empty(t, GetOp(ctx))

	ctx = WithOp(WithTaskID(ctx, "abc"), "delete")
	assert.Equal(t, "abc", GetTaskID(ctx))
	assert.Equal(t, "delete", GetOp(ctx))
}
