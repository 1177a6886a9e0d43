package cmd

import (
	"bytes"
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/ssargent/samplestore/pkg/api"
	"github.com/ssargent/samplestore/pkg/di"
	"github.com/ssargent/samplestore/pkg/sample"
	"github.com/ssargent/samplestore/pkg/storage"
	"github.com/ssargent/samplestore/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingStarter struct {
	config   api.ServerConfig
	hasStore bool
	hasIndex bool
	err      error
}

func (r *recordingStarter) StartServer(ctx context.Context, sampleStore *store.SampleStore, index *storage.SampleIndex, config api.ServerConfig) error {
	r.config = config
	r.hasStore = sampleStore != nil
	r.hasIndex = index != nil
	return r.err
}

type recordingFactory struct {
	starter *recordingStarter
}

func (f *recordingFactory) CreateServerStarter() api.ServerStarter {
	return f.starter
}

func withStarter(t *testing.T, starter *recordingStarter) {
	t.Helper()

	c := di.NewContainer()
	c.SetServerFactory(&recordingFactory{starter: starter})
	SetContainer(c)
	t.Cleanup(func() { SetContainer(nil) })
}

func TestRunServe(t *testing.T) {
	starter := &recordingStarter{}
	withStarter(t, starter)

	cfg := testConfig(t)
	cfg.Port = 9123
	cfg.Security.APIKey = "secret"

	var out bytes.Buffer
	require.NoError(t, runServe(context.Background(), &out, cfg))

	assert.True(t, starter.hasStore)
	assert.True(t, starter.hasIndex)
	assert.Equal(t, api.ServerConfig{Port: 9123, Bind: "127.0.0.1", APIKey: "secret"}, starter.config)
	assert.Contains(t, out.String(), "Starting samplestore API on 127.0.0.1:9123")
}

func TestRunServe_DefaultKeyDisablesAuth(t *testing.T) {
	starter := &recordingStarter{}
	withStarter(t, starter)

	cfg := testConfig(t)
	cfg.Index.Enabled = false

	require.NoError(t, runServe(context.Background(), &bytes.Buffer{}, cfg))
	assert.Empty(t, starter.config.APIKey)
	assert.False(t, starter.hasIndex)
}

func TestRunServe_Errors(t *testing.T) {
	t.Run("no container", func(t *testing.T) {
		SetContainer(nil)
		err := runServe(context.Background(), &bytes.Buffer{}, testConfig(t))
		assert.Error(t, err)
	})

	t.Run("server error", func(t *testing.T) {
		starter := &recordingStarter{err: errors.New("address in use")}
		withStarter(t, starter)

		err := runServe(context.Background(), &bytes.Buffer{}, testConfig(t))
		assert.EqualError(t, err, "address in use")
	})
}

func TestEnforceRetention_StopsWithContext(t *testing.T) {
	cfg := testConfig(t)
	sampleStore, err := openStore(cfg)
	require.NoError(t, err)
	defer sampleStore.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		enforceRetention(ctx, sampleStore, nil, time.Hour, time.Millisecond)
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("retention loop did not stop")
	}
}

func TestApplyRetention_TrimsIndex(t *testing.T) {
	cfg := testConfig(t)
	sampleStore, err := openStore(cfg)
	require.NoError(t, err)
	defer sampleStore.Close()
	index, err := openIndex(cfg)
	require.NoError(t, err)
	defer index.Close()

	now := time.UnixMilli(1_600_000_000_000)
	old := now.Add(-2 * time.Hour).UnixMilli()
	recent := now.Add(-30 * time.Minute).UnixMilli()
	for _, ts := range []int64{old, recent} {
		for _, topic := range []string{"orders", "payments"} {
			opts := ordersOptions(ts)
			opts.Topic = topic
			ms, err := buildSample(opts)
			require.NoError(t, err)
			require.NoError(t, index.Put(ms))
		}
	}

	applyRetention(now, sampleStore, index, time.Hour)

	for _, topic := range []string{"orders", "payments"} {
		entity := sample.PartitionEntity{Topic: topic, Partition: ordersOptions(0).Partition}
		samples, err := index.Range(context.Background(), entity, math.MinInt64, math.MaxInt64)
		require.NoError(t, err)
		require.Len(t, samples, 1, topic)
		assert.Equal(t, recent, samples[0].SampleTime())
	}

	// A zero retention keeps the index untouched
	applyRetention(now.Add(24*time.Hour), sampleStore, index, 0)
	samples, err := index.Range(context.Background(), sample.PartitionEntity{Topic: "orders", Partition: ordersOptions(0).Partition}, math.MinInt64, math.MaxInt64)
	require.NoError(t, err)
	assert.Len(t, samples, 1)

	// No index is a no-op
	applyRetention(now, sampleStore, nil, time.Hour)
}

func TestRunInit(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	dataDir := filepath.Join(dir, "data")

	var out bytes.Buffer
	require.NoError(t, runInit(&out, configPath, dataDir, false, true))
	assert.Contains(t, out.String(), "Configuration created at "+configPath)
	assert.Contains(t, out.String(), "API key: ")
	assert.DirExists(t, dataDir)

	out.Reset()
	require.NoError(t, runInit(&out, configPath, dataDir, false, false))
	assert.Contains(t, out.String(), "already exists")

	out.Reset()
	require.NoError(t, runInit(&out, configPath, dataDir, true, false))
	assert.Contains(t, out.String(), "Configuration created")
	assert.NotContains(t, out.String(), "API key")
}
