package app

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starseeker/starseeker/internal/config"
	"github.com/starseeker/starseeker/internal/favourites"
	"github.com/starseeker/starseeker/internal/kvstore"
	"github.com/starseeker/starseeker/internal/network"
)

func testConfig(baseURL string) *config.Config {
	return &config.Config{
		API: config.APIConfig{
			BaseURL: baseURL,
			Key:     "test-key",
			Timeout: 2 * time.Second,
		},
		Cache:   config.CacheConfig{StaleTime: time.Minute, GCTime: time.Hour},
		Storage: config.StorageConfig{Driver: config.DriverMemory},
		Log:     config.LogConfig{Level: "info"},
	}
}

func TestNew_MemoryDriver(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, "/gates", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `[{"code":"SOL","name":"Sol"}]`)
	}))
	defer upstream.Close()

	a, err := New(context.Background(), testConfig(upstream.URL), zerolog.Nop(), Options{})
	require.NoError(t, err)
	defer a.Close()

	assert.IsType(t, &kvstore.MemoryStore{}, a.Store)

	a.Load(context.Background())
	assert.Equal(t, favourites.StateReady, a.Gates.State())
	assert.Equal(t, favourites.StateReady, a.Routes.State())

	gates, err := a.Network.ListGates(context.Background())
	require.NoError(t, err)
	require.Len(t, gates, 1)
	assert.Equal(t, "SOL", gates[0].Code)
	assert.Equal(t, []string{"hstc"}, a.Registry.Names())
}

func TestNew_FileDriver(t *testing.T) {
	cfg := testConfig("http://localhost:0")
	cfg.Storage = config.StorageConfig{
		Driver: config.DriverFile,
		Path:   filepath.Join(t.TempDir(), "storage.json"),
	}

	a, err := New(context.Background(), cfg, zerolog.Nop(), Options{})
	require.NoError(t, err)
	defer a.Close()

	fs, ok := a.Store.(*kvstore.FileStore)
	require.True(t, ok)
	assert.Equal(t, cfg.Storage.Path, fs.Path())

	a.Load(context.Background())
	a.Gates.AddFavourite(context.Background(), network.Gate{Code: "SOL", Name: "Sol"})

	value, found, err := fs.Get(context.Background(), favourites.GateFavouritesKey)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Contains(t, value, `"SOL"`)
}

func TestNew_RedisDriver(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := testConfig("http://localhost:0")
	cfg.Storage.Driver = config.DriverRedis
	cfg.Redis.Addr = mr.Addr()

	a, err := New(context.Background(), cfg, zerolog.Nop(), Options{})
	require.NoError(t, err)

	require.NoError(t, a.Store.Set(context.Background(), "k", "v"))
	assert.True(t, mr.Exists(kvstore.DefaultRedisPrefix+"k"))

	require.NoError(t, a.Close())
}

func TestNew_RedisUnavailable(t *testing.T) {
	cfg := testConfig("http://localhost:0")
	cfg.Storage.Driver = config.DriverRedis
	cfg.Redis.Addr = "127.0.0.1:1"

	_, err := New(context.Background(), cfg, zerolog.Nop(), Options{})
	assert.Error(t, err)
}

func TestNew_UnknownDriver(t *testing.T) {
	cfg := testConfig("http://localhost:0")
	cfg.Storage.Driver = "floppy"

	_, err := New(context.Background(), cfg, zerolog.Nop(), Options{})
	assert.ErrorContains(t, err, "floppy")
}

func TestNew_InjectedStoreAndRegisterer(t *testing.T) {
	store := kvstore.NewMemoryStore()
	reg := prometheus.NewRegistry()

	a, err := New(context.Background(), testConfig("http://localhost:0"), zerolog.Nop(), Options{
		Store:      store,
		Registerer: reg,
	})
	require.NoError(t, err)
	defer a.Close()

	assert.Same(t, store, a.Store)

	// Registering twice against the same registry reuses the collectors.
	_, err = New(context.Background(), testConfig("http://localhost:0"), zerolog.Nop(), Options{
		Store:      store,
		Registerer: reg,
	})
	assert.NoError(t, err)
}

func TestNewLogger(t *testing.T) {
	tests := []struct {
		level string
		want  zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"WARN", zerolog.WarnLevel},
		{"", zerolog.InfoLevel},
		{"loud", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			logger := NewLogger(config.LogConfig{Level: tt.level}, "starseeker", "test")
			assert.Equal(t, tt.want, logger.GetLevel())
		})
	}
}
