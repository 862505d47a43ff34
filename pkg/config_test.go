package tpx3

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigurationValidate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		modify func(*Configuration)
		field  string
	}{
		{"zero width", func(c *Configuration) { c.Width = 0 }, "width"},
		{"oversized height", func(c *Configuration) { c.Height = MaxResolution + 1 }, "height"},
		{"no workers", func(c *Configuration) { c.NumWorkers = 0 }, "num_workers"},
		{"negative tolerance", func(c *Configuration) { c.ClusterTolerance = -1 }, "cluster_tolerance"},
		{"zero bin width", func(c *Configuration) { c.BinWidth = 0 }, "bin_width"},
		{"zero resolution", func(c *Configuration) { c.SpectrumResolution = 0 }, "spectrum_resolution"},
		{"negative pulse", func(c *Configuration) { c.TofPulseLength = -5 }, "tof_pulse_length"},
		{"negative sample", func(c *Configuration) { c.DeadPixelSample = -1 }, "dead_pixel_sample"},
		{"zero scale", func(c *Configuration) { c.ImageScale = 0 }, "image_scale"},
		{"compression", func(c *Configuration) { c.CompressionLevel = 10 }, "compression_level"},
		{"driver", func(c *Configuration) { c.NoDB = false; c.DBDriver = "postgres" }, "db_driver"},
		{"multiplier", func(c *Configuration) { c.MaxCountMultiplier = 0.5 }, "max_count_multiplier"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			config := DefaultConfiguration()
			tc.modify(&config)
			var configErr *ConfigError
			require.ErrorAs(t, config.Validate(), &configErr)
			assert.Equal(t, tc.field, configErr.Field)
		})
	}

	assert.NoError(t, DefaultConfiguration().Validate())
}

func TestStatisticJSON(t *testing.T) {
	t.Parallel()

	var config Configuration
	require.NoError(t, json.Unmarshal([]byte(`{"dead_pixel_statistic": "mean"}`), &config))
	assert.Equal(t, StatisticMean, config.DeadPixelStatistic)

	data, err := json.Marshal(StatisticMedian)
	require.NoError(t, err)
	assert.JSONEq(t, `"median"`, string(data))

	err = json.Unmarshal([]byte(`{"dead_pixel_statistic": "mode"}`), &config)
	var configErr *ConfigError
	require.ErrorAs(t, err, &configErr)
	assert.Equal(t, "dead_pixel_statistic", configErr.Field)

	assert.Equal(t, "UNKNOWN", Statistic(9).String())
}
