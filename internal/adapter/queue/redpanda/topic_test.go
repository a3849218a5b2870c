package redpanda

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kmsg"
)

type fakeRequester struct {
	resp kmsg.Response
	err  error
	got  *kmsg.CreateTopicsRequest
}

func (f *fakeRequester) Request(_ context.Context, req kmsg.Request) (kmsg.Response, error) {
	f.got, _ = req.(*kmsg.CreateTopicsRequest)
	return f.resp, f.err
}

func topicResponse(code int16, msg string) *kmsg.CreateTopicsResponse {
	resp := kmsg.NewCreateTopicsResponse()
	tr := kmsg.NewCreateTopicsResponseTopic()
	tr.Topic = "feedback-generate"
	tr.ErrorCode = code
	if msg != "" {
		tr.ErrorMessage = &msg
	}
	resp.Topics = append(resp.Topics, tr)
	return &resp
}

func TestCreateTopicIfNotExists(t *testing.T) {
	ctx := context.Background()

	t.Run("created", func(t *testing.T) {
		r := &fakeRequester{resp: topicResponse(0, "")}
		require.NoError(t, createTopicIfNotExists(ctx, r, "feedback-generate", 3, 1))
		require.NotNil(t, r.got)
		require.Len(t, r.got.Topics, 1)
		assert.Equal(t, int32(3), r.got.Topics[0].NumPartitions)
		assert.Equal(t, int16(1), r.got.Topics[0].ReplicationFactor)
	})
	t.Run("already exists", func(t *testing.T) {
		r := &fakeRequester{resp: topicResponse(errTopicAlreadyExists, "exists")}
		assert.NoError(t, createTopicIfNotExists(ctx, r, "feedback-generate", 3, 1))
	})
	t.Run("broker error", func(t *testing.T) {
		r := &fakeRequester{resp: topicResponse(41, "not controller")}
		err := createTopicIfNotExists(ctx, r, "feedback-generate", 3, 1)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not controller")
	})
	t.Run("request error", func(t *testing.T) {
		r := &fakeRequester{err: errors.New("dial tcp")}
		assert.Error(t, createTopicIfNotExists(ctx, r, "feedback-generate", 3, 1))
	})
	t.Run("validation", func(t *testing.T) {
		r := &fakeRequester{}
		assert.Error(t, createTopicIfNotExists(ctx, r, "", 3, 1))
		assert.Error(t, createTopicIfNotExists(ctx, r, "t", 0, 1))
		assert.Error(t, createTopicIfNotExists(ctx, r, "t", 1, 0))
		assert.Nil(t, r.got)
	})
}
