package cli

import (
	"testing"

	"github.com/aretw0/covidash/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCommand(t *testing.T) {
	t.Run("Verbs", func(t *testing.T) {
		for line, want := range map[string]Action{
			"":        ActionNone,
			"show":    ActionShow,
			"states":  ActionStates,
			"GRAPH":   ActionGraph,
			"r":       ActionRefresh,
			"?":       ActionHelp,
			"quit":    ActionQuit,
			"  exit ": ActionQuit,
		} {
			cmd, err := ParseCommand(line)
			require.NoError(t, err, line)
			assert.Equal(t, want, cmd.Action, line)
		}
	})

	t.Run("Metric", func(t *testing.T) {
		cmd, err := ParseCommand("metric deaths")
		require.NoError(t, err)
		assert.Equal(t, ActionApply, cmd.Action)
		require.NotNil(t, cmd.Patch.Metric)
		assert.Equal(t, domain.MetricDeaths, *cmd.Patch.Metric)
	})

	t.Run("Range", func(t *testing.T) {
		cmd, err := ParseCommand("range 2020-03-01 2020-06-30")
		require.NoError(t, err)
		require.NotNil(t, cmd.Patch.Start)
		require.NotNil(t, cmd.Patch.End)
		assert.Equal(t, "2020-06-30", cmd.Patch.End.Format("2006-01-02"))

		_, err = ParseCommand("range 2020-03-01")
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("Adjust", func(t *testing.T) {
		for line, want := range map[string]bool{"adjust on": true, "adjust off": false, "adjust true": true, "adjust 0": false} {
			cmd, err := ParseCommand(line)
			require.NoError(t, err, line)
			require.NotNil(t, cmd.Patch.PopulationAdjust, line)
			assert.Equal(t, want, *cmd.Patch.PopulationAdjust, line)
		}
	})

	t.Run("State keeps spaces", func(t *testing.T) {
		cmd, err := ParseCommand("state New York")
		require.NoError(t, err)
		assert.Equal(t, "New York", *cmd.Patch.State)

		cmd, err = ParseCommand("state all")
		require.NoError(t, err)
		assert.Equal(t, domain.ShowAll, *cmd.Patch.State)
	})

	t.Run("Set", func(t *testing.T) {
		cmd, err := ParseCommand("set metric=deaths adjust=on")
		require.NoError(t, err)
		assert.Equal(t, domain.MetricDeaths, *cmd.Patch.Metric)
		assert.True(t, *cmd.Patch.PopulationAdjust)
		assert.Nil(t, cmd.Patch.State)

		_, err = ParseCommand("set color=red")
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("Errors", func(t *testing.T) {
		_, err := ParseCommand("metric recovered")
		assert.ErrorIs(t, err, domain.ErrInvalidInput)

		_, err = ParseCommand("metric")
		assert.ErrorIs(t, err, domain.ErrInvalidInput)

		_, err = ParseCommand("dance")
		assert.ErrorContains(t, err, "unknown command")
	})
}
