package storage

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"blockwatch/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockRedisClient is a mock implementation of RedisClient
type MockRedisClient struct {
	mock.Mock
}

func (m *MockRedisClient) HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd {
	args := m.Called(ctx, key)
	return args.Get(0).(*redis.MapStringStringCmd)
}

func (m *MockRedisClient) TxPipelined(ctx context.Context, fn func(redis.Pipeliner) error) ([]redis.Cmder, error) {
	args := m.Called(ctx, fn)
	var cmds []redis.Cmder
	if v := args.Get(0); v != nil {
		cmds = v.([]redis.Cmder)
	}
	return cmds, args.Error(1)
}

func (m *MockRedisClient) LPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd {
	args := m.Called(ctx, key, values)
	return args.Get(0).(*redis.IntCmd)
}

func (m *MockRedisClient) LRange(ctx context.Context, key string, start, stop int64) *redis.StringSliceCmd {
	args := m.Called(ctx, key, start, stop)
	return args.Get(0).(*redis.StringSliceCmd)
}

func (m *MockRedisClient) Ping(ctx context.Context) *redis.StatusCmd {
	args := m.Called(ctx)
	return args.Get(0).(*redis.StatusCmd)
}

func (m *MockRedisClient) PoolStats() *redis.PoolStats {
	args := m.Called()
	return args.Get(0).(*redis.PoolStats)
}

func (m *MockRedisClient) Close() error {
	args := m.Called()
	return args.Error(0)
}

func createMapCmd(val map[string]string, err error) *redis.MapStringStringCmd {
	cmd := redis.NewMapStringStringCmd(context.Background())
	if err != nil {
		cmd.SetErr(err)
	} else {
		cmd.SetVal(val)
	}
	return cmd
}

func createIntCmd(val int64, err error) *redis.IntCmd {
	cmd := redis.NewIntCmd(context.Background())
	if err != nil {
		cmd.SetErr(err)
	} else {
		cmd.SetVal(val)
	}
	return cmd
}

func createStringSliceCmd(val []string, err error) *redis.StringSliceCmd {
	cmd := redis.NewStringSliceCmd(context.Background())
	if err != nil {
		cmd.SetErr(err)
	} else {
		cmd.SetVal(val)
	}
	return cmd
}

func TestRedisProvider_Load(t *testing.T) {
	client := new(MockRedisClient)
	provider := NewRedisProviderWithClient(client, "blockwatch:", discardLogger())

	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	first, _ := json.Marshal(testEntry("10.0.0.5", now, time.Hour))
	second, _ := json.Marshal(testEntry("10.0.0.6", now.Add(time.Minute), 0))

	client.On("HGetAll", mock.Anything, "blockwatch:blocks").Return(createMapCmd(map[string]string{
		"10.0.0.6": string(second),
		"10.0.0.5": string(first),
	}, nil))

	entries, err := provider.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "10.0.0.5", entries[0].IP)
	assert.Equal(t, "10.0.0.6", entries[1].IP)
	assert.Nil(t, entries[1].ExpiresAt)
	client.AssertExpectations(t)
}

func TestRedisProvider_LoadError(t *testing.T) {
	client := new(MockRedisClient)
	provider := NewRedisProviderWithClient(client, "blockwatch", discardLogger())

	client.On("HGetAll", mock.Anything, "blockwatch:blocks").Return(createMapCmd(nil, errors.New("connection refused")))

	_, err := provider.Load(context.Background())
	assert.ErrorIs(t, err, ErrIOFailure)
}

func TestRedisProvider_Save(t *testing.T) {
	client := new(MockRedisClient)
	provider := NewRedisProviderWithClient(client, "blockwatch", discardLogger())

	// a real pipeline only queues commands, nothing is sent
	pipe := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"}).TxPipeline()

	client.On("TxPipelined", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			fn := args.Get(1).(func(redis.Pipeliner) error)
			require.NoError(t, fn(pipe))
		}).
		Return(nil, nil)

	now := time.Now().UTC()
	err := provider.Save(context.Background(), []models.BlockEntry{testEntry("10.0.0.5", now, time.Hour)})
	require.NoError(t, err)
	assert.Equal(t, 2, pipe.Len(), "DEL followed by HSET")
	client.AssertExpectations(t)
}

func TestRedisProvider_SaveEmptyOnlyDeletes(t *testing.T) {
	client := new(MockRedisClient)
	provider := NewRedisProviderWithClient(client, "blockwatch", discardLogger())
	pipe := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"}).TxPipeline()

	client.On("TxPipelined", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			fn := args.Get(1).(func(redis.Pipeliner) error)
			require.NoError(t, fn(pipe))
		}).
		Return(nil, nil)

	require.NoError(t, provider.Save(context.Background(), nil))
	assert.Equal(t, 1, pipe.Len())
}

func TestRedisProvider_SaveError(t *testing.T) {
	client := new(MockRedisClient)
	provider := NewRedisProviderWithClient(client, "blockwatch", discardLogger())

	client.On("TxPipelined", mock.Anything, mock.Anything).Return(nil, errors.New("EXECABORT"))

	err := provider.Save(context.Background(), nil)
	require.Error(t, err)

	var pErr *PersistenceError
	require.ErrorAs(t, err, &pErr)
	assert.Equal(t, "save", pErr.Op)
}

func TestRedisProvider_History(t *testing.T) {
	client := new(MockRedisClient)
	provider := NewRedisProviderWithClient(client, "blockwatch", discardLogger())

	event := models.HistoryEvent{ID: "1", Type: models.EventBlock, IP: "10.0.0.5", Timestamp: time.Now().UTC()}
	data, _ := json.Marshal(event)

	client.On("LPush", mock.Anything, "blockwatch:history", []interface{}{string(data)}).Return(createIntCmd(1, nil))
	client.On("LRange", mock.Anything, "blockwatch:history", int64(0), int64(9)).
		Return(createStringSliceCmd([]string{string(data), "garbage"}, nil))

	require.NoError(t, provider.AppendHistory(context.Background(), event))

	events, err := provider.ListHistory(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "1", events[0].ID)
	client.AssertExpectations(t)
}
