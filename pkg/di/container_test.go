package di

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ssargent/arenabuf/pkg/api"
	"github.com/ssargent/arenabuf/pkg/config"
	"github.com/ssargent/arenabuf/pkg/schema"
)

func testConfig(t *testing.T, name, desc string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.DataDir = filepath.Join(dir, "data")
	cfg.SchemaPath = filepath.Join(dir, name)
	cfg.Logging.Level = "noop"
	cfg.Security.APIKey = "k"
	require.NoError(t, os.WriteFile(cfg.SchemaPath, []byte(desc), 0600))
	return cfg
}

func TestContainerStore(t *testing.T) {
	c := NewContainer(testConfig(t, "schema.json", `{"type": "table", "columns": [["name", {"type": "string"}]]}`))
	defer c.Close()

	store, err := c.Store()
	require.NoError(t, err)
	again, err := c.Store()
	require.NoError(t, err)
	assert.Same(t, store, again)

	f, err := c.Factory()
	require.NoError(t, err)
	assert.Same(t, f, store.Factory())

	stats, err := store.Stats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.Documents)

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
}

func TestContainerYAMLSchema(t *testing.T) {
	c := NewContainer(testConfig(t, "schema.yml", "type: list\nof:\n  type: int64\n"))
	f, err := c.Factory()
	require.NoError(t, err)
	assert.Equal(t, schema.KindList, f.Schema().Root().Kind)
}

func TestContainerErrors(t *testing.T) {
	t.Run("missing schema", func(t *testing.T) {
		cfg := testConfig(t, "schema.json", "{}")
		cfg.SchemaPath = filepath.Join(t.TempDir(), "absent.json")
		_, err := NewContainer(cfg).Store()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to read schema")
	})

	t.Run("invalid schema", func(t *testing.T) {
		_, err := NewContainer(testConfig(t, "schema.json", `{"type": "nope"}`)).Factory()
		var se *schema.SchemaError
		assert.ErrorAs(t, err, &se)
	})

	t.Run("bad log level", func(t *testing.T) {
		cfg := testConfig(t, "schema.json", `{"type": "string"}`)
		cfg.Logging.Level = "loud"
		_, err := NewContainer(cfg).Logger()
		assert.Error(t, err)
	})
}

func TestContainerServerConfig(t *testing.T) {
	cfg := testConfig(t, "schema.json", `{"type": "string"}`)
	cfg.Port = 9300
	c := NewContainer(cfg)
	assert.Equal(t, api.ServerConfig{Bind: "127.0.0.1", Port: 9300, APIKey: "k"}, c.ServerConfig())
}

type fakeServerFactory struct{ api.ServerFactory }

func TestContainerOverrides(t *testing.T) {
	c := NewContainer(nil)
	assert.Equal(t, config.DefaultConfig(), c.Config())
	assert.NotNil(t, c.GetServerFactory())

	fake := &fakeServerFactory{}
	c.SetServerFactory(fake)
	assert.Same(t, fake, c.GetServerFactory())

	log := zap.NewNop().Sugar()
	c.SetLogger(log)
	got, err := c.Logger()
	require.NoError(t, err)
	assert.Same(t, log, got)
}
