package tx

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromEmptyContext(t *testing.T) {
	_, ok := From(context.Background())
	assert.False(t, ok)
}

func TestWithTxRoundTrip(t *testing.T) {
	want := &sql.Tx{}
	ctx := WithTx(context.Background(), want)

	got, ok := From(ctx)
	assert.True(t, ok)
	assert.Same(t, want, got)
}

func TestWithNilTxIsNoop(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, ctx, WithTx(ctx, nil))
}
