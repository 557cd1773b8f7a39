package valuecache

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mash-protocol/tagsched/pkg/tag"
)

func TestMemoryGetValues(t *testing.T) {
	m := NewMemory()
	m.Set(1, 21.5)
	m.Set(2, "open")
	m.Set(3, true)
	m.Delete(3)

	values, err := m.GetValues(context.Background(), []tag.Handle{1, 2, 3, 4})
	require.NoError(t, err)

	assert.Len(t, values, 2)
	assert.Equal(t, 21.5, values[1].Raw)
	assert.Equal(t, "open", values[2].Raw)
	assert.False(t, values[1].UpdatedAt.IsZero())
}

func TestMemoryHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewMemory().GetValues(ctx, []tag.Handle{1})
	assert.ErrorIs(t, err, context.Canceled)
}

type stubMGetter struct{ mock.Mock }

func (s *stubMGetter) MGet(ctx context.Context, keys ...string) ([]any, error) {
	ret := s.Called(ctx, keys)
	var vals []any
	if ret.Get(0) != nil {
		vals = ret.Get(0).([]any)
	}
	return vals, ret.Error(1)
}

func TestRedisGetValues(t *testing.T) {
	stub := &stubMGetter{}
	stub.On("MGet", mock.Anything, []string{"plant:1", "plant:2", "plant:9"}).
		Return([]any{"21.5", nil, "7"}, nil)

	r := NewRedis(stub, "plant:")
	values, err := r.GetValues(context.Background(), []tag.Handle{1, 2, 9})
	require.NoError(t, err)

	assert.Equal(t, map[tag.Handle]Value{1: {Raw: "21.5"}, 9: {Raw: "7"}}, values)
	stub.AssertExpectations(t)
}

func TestRedisDefaults(t *testing.T) {
	r := NewRedis(&stubMGetter{}, "")
	assert.Equal(t, "tag:42", r.Key(42))

	values, err := r.GetValues(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, values)
}

func TestRedisErrors(t *testing.T) {
	stub := &stubMGetter{}
	stub.On("MGet", mock.Anything, []string{"tag:1"}).Return(nil, errors.New("connection refused")).Once()
	stub.On("MGet", mock.Anything, []string{"tag:1"}).Return([]any{}, nil).Once()

	r := NewRedis(stub, "")

	_, err := r.GetValues(context.Background(), []tag.Handle{1})
	assert.ErrorContains(t, err, "connection refused")

	_, err = r.GetValues(context.Background(), []tag.Handle{1})
	assert.ErrorContains(t, err, "got 0 values for 1 keys")
}
