package query

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPage_LastPage(t *testing.T) {
	tests := []struct {
		total   int64
		perPage int
		want    int
	}{
		{0, 2, 1},
		{1, 2, 1},
		{2, 2, 1},
		{3, 2, 2},
		{5, 2, 3},
		{100, 10, 10},
	}
	for _, tt := range tests {
		p := NewPage(nil, tt.total, tt.perPage, 1)
		assert.Equal(t, tt.want, p.LastPage, "total=%d perPage=%d", tt.total, tt.perPage)
		assert.NotNil(t, p.Items)
	}
}

func TestGetOrPaginate_AllRows(t *testing.T) {
	ex := &fakeExecutor{rows: []map[string]any{{"id": 1}, {"id": 2}}}

	res, err := GetOrPaginate(context.Background(), ex, 0, 3)
	require.NoError(t, err)
	assert.False(t, res.Paginated())
	assert.Len(t, res.Rows, 2)
	assert.Equal(t, 1, ex.getCalls)
	assert.Equal(t, 0, ex.pageCalls)
}

func TestGetOrPaginate_Page(t *testing.T) {
	ex := &fakeExecutor{rows: []map[string]any{{"id": 1}}}

	res, err := GetOrPaginate(context.Background(), ex, 2, 0)
	require.NoError(t, err)
	assert.True(t, res.Paginated())
	assert.Equal(t, 1, ex.page)
	assert.Equal(t, 2, ex.perPage)
	assert.Equal(t, 1, res.Page.CurrentPage)
	assert.Equal(t, 0, ex.getCalls)
}

func TestGetOrPaginate_EmptyRowsNotNil(t *testing.T) {
	res, err := GetOrPaginate(context.Background(), &fakeExecutor{}, 0, 1)
	require.NoError(t, err)
	assert.NotNil(t, res.Rows)
}

func TestGetOrPaginate_Error(t *testing.T) {
	boom := errors.New("boom")
	_, err := GetOrPaginate(context.Background(), &fakeExecutor{err: boom}, 5, 1)
	assert.ErrorIs(t, err, boom)
	_, err = GetOrPaginate(context.Background(), &fakeExecutor{err: boom}, 0, 1)
	assert.ErrorIs(t, err, boom)
}
