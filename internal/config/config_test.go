package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aretw0/covidash/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileMeansDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "covidash.yaml")
	yml := `
data:
  series: ./us-states.csv
  timeout: 5s
redis:
  addr: localhost:6379
  ttl: 24h
log:
  level: debug
  format: json
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "./us-states.csv", cfg.Data.Series)
	assert.Equal(t, Default().Data.Population, cfg.Data.Population)
	assert.Equal(t, 5*time.Second, cfg.Data.Timeout)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 24*time.Hour, cfg.Redis.TTL)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "covidash.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"server":{"addr":":9090","cors":true}}`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.True(t, cfg.Server.CORS)
}

func TestLoad_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "covidash.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  format: xml\n"), 0644))
	_, err := Load(path)
	assert.ErrorContains(t, err, "log.format")

	require.NoError(t, os.WriteFile(path, []byte("data: [\n"), 0644))
	_, err = Load(path)
	assert.Error(t, err)
}

func TestDecodePatch(t *testing.T) {
	p, err := DecodePatch(map[string]any{
		"metric":            "Deaths",
		"start":             "2020-03-01",
		"population_adjust": "true",
		"state":             "Ohio",
	})
	require.NoError(t, err)
	require.NotNil(t, p.Metric)
	assert.Equal(t, domain.MetricDeaths, *p.Metric)
	require.NotNil(t, p.Start)
	assert.Equal(t, time.Date(2020, 3, 1, 0, 0, 0, 0, time.UTC), *p.Start)
	assert.Nil(t, p.End)
	require.NotNil(t, p.PopulationAdjust)
	assert.True(t, *p.PopulationAdjust)
	assert.Equal(t, "Ohio", *p.State)

	p, err = DecodePatch(map[string]any{"population_adjust": false})
	require.NoError(t, err)
	assert.False(t, *p.PopulationAdjust)
	assert.Nil(t, p.Metric)
}

func TestDecodePatch_Rejects(t *testing.T) {
	cases := []map[string]any{
		{"metric": "recovered"},
		{"start": "03/01/2020"},
		{"colour": "red"},
	}
	for _, in := range cases {
		_, err := DecodePatch(in)
		assert.ErrorIs(t, err, domain.ErrInvalidInput, "%v", in)
	}
}
