package publisher

import (
	"context"
	"errors"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStream struct {
	args []*redis.XAddArgs
	err  error
}

func (f *fakeStream) XAdd(_ context.Context, a *redis.XAddArgs) *redis.StringCmd {
	f.args = append(f.args, a)
	return redis.NewStringResult("1-0", f.err)
}

func TestRedisStreamPublisher_AddsOneEntryPerBatch(t *testing.T) {
	enc, err := NewEncoder()
	require.NoError(t, err)
	stream := &fakeStream{}
	p, err := NewRedisStreamPublisher(stream, enc, 1000)
	require.NoError(t, err)

	require.NoError(t, p.Publish(context.Background(), "cdr.direct", "cdr.created", sampleBatch()))

	require.Len(t, stream.args, 1)
	a := stream.args[0]
	assert.Equal(t, "cdr.direct", a.Stream)
	assert.Equal(t, int64(1000), a.MaxLen)
	assert.True(t, a.Approx)

	values, ok := a.Values.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "cdr.created", values[fieldRoutingKey])
	assert.Equal(t, 1, values[fieldCount])
	assert.NotEmpty(t, values[fieldMessageID])
	require.NoError(t, enc.Validate(values[fieldPayload].([]byte)))
}

func TestRedisStreamPublisher_NoTrimWhenMaxLenUnset(t *testing.T) {
	enc, err := NewEncoder()
	require.NoError(t, err)
	stream := &fakeStream{}
	p, err := NewRedisStreamPublisher(stream, enc, 0)
	require.NoError(t, err)

	require.NoError(t, p.Publish(context.Background(), "cdr", "k", sampleBatch()))
	assert.Zero(t, stream.args[0].MaxLen)
	assert.False(t, stream.args[0].Approx)
}

func TestRedisStreamPublisher_PropagatesErrors(t *testing.T) {
	enc, err := NewEncoder()
	require.NoError(t, err)
	stream := &fakeStream{err: errors.New("READONLY")}
	p, err := NewRedisStreamPublisher(stream, enc, 0)
	require.NoError(t, err)

	err = p.Publish(context.Background(), "cdr", "k", sampleBatch())
	assert.ErrorContains(t, err, "READONLY")

	_, err = NewRedisStreamPublisher(nil, enc, 0)
	assert.Error(t, err)

	err = p.Publish(context.Background(), "cdr", "k", nil)
	assert.ErrorIs(t, err, ErrEmptyBatch)
	assert.Len(t, stream.args, 1)
}
