package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/covidash/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunSelectionStoreContract runs a suite of tests to verify that a
// SelectionStore implementation adheres to the defined interface contract.
func RunSelectionStoreContract(t *testing.T, store SelectionStore) {
	ctx := context.Background()
	sessionID := "contract-test-session-" + time.Now().Format("20060102150405")

	start, _ := domain.ParseDate("2020-01-21")
	end, _ := domain.ParseDate("2020-03-01")
	sel := domain.Selection{
		Metric:           domain.MetricDeaths,
		Range:            domain.DateRange{Start: start, End: end},
		PopulationAdjust: true,
		State:            "Washington",
	}

	t.Run("Save and Load", func(t *testing.T) {
		err := store.Save(ctx, sessionID, sel)
		require.NoError(t, err, "Save should not return error")

		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, sel.Metric, loaded.Metric)
		assert.True(t, sel.Range.Start.Equal(loaded.Range.Start))
		assert.True(t, sel.Range.End.Equal(loaded.Range.End))
		assert.Equal(t, sel.PopulationAdjust, loaded.PopulationAdjust)
		assert.Equal(t, sel.State, loaded.State)
	})

	t.Run("Save Overwrites", func(t *testing.T) {
		next := sel
		next.State = domain.ShowAll
		require.NoError(t, store.Save(ctx, sessionID, next))

		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err)
		assert.Equal(t, domain.ShowAll, loaded.State)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, sessionID, sel))

		err := store.Delete(ctx, sessionID)
		require.NoError(t, err, "Delete should not return error")

		_, err = store.Load(ctx, sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound, "Load after Delete should return ErrSessionNotFound")
	})

	t.Run("List", func(t *testing.T) {
		id1 := sessionID + "-1"
		id2 := sessionID + "-2"
		_ = store.Save(ctx, id1, sel)
		_ = store.Save(ctx, id2, sel)

		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		sessions, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, sessions, id1)
		assert.Contains(t, sessions, id2)
	})
}
