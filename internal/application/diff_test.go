package application_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/threadwatch/internal/application"
	"github.com/ericfisherdev/threadwatch/internal/domain/model"
)

func TestDiff_NilOldIsBaseline(t *testing.T) {
	current := snapshot(
		comment("c1", "first", baseTime),
		comment("c2", "second", baseTime),
	)

	events := application.Diff(nil, current)

	require.NotNil(t, events)
	assert.Empty(t, events)
}

func TestDiff_NilCurrent(t *testing.T) {
	events := application.Diff(snapshot(comment("c1", "first", baseTime)), nil)

	require.NotNil(t, events)
	assert.Empty(t, events)
}

func TestDiff_IdenticalSnapshots(t *testing.T) {
	s := snapshot(
		comment("c1", "first", baseTime),
		comment("c2", "second", time.Time{}),
	)

	assert.Empty(t, application.Diff(s, s))
	assert.Empty(t, application.Diff(s, snapshot(
		comment("c1", "first", baseTime),
		comment("c2", "second", time.Time{}),
	)))
}

func TestDiff_UpdateTimeTolerance(t *testing.T) {
	old := comment("c1", "before", baseTime)

	t.Run("one second apart suppresses content change", func(t *testing.T) {
		current := comment("c1", "after", baseTime.Add(time.Second))
		assert.Empty(t, application.Diff(snapshot(old), snapshot(current)))
	})

	t.Run("sub-second jitter suppresses resolve", func(t *testing.T) {
		current := comment("c1", "before", baseTime.Add(900*time.Millisecond))
		current.Resolved = true
		assert.Empty(t, application.Diff(snapshot(old), snapshot(current)))
	})

	t.Run("both missing suppresses metadata change", func(t *testing.T) {
		a := comment("c1", "x", time.Time{})
		b := comment("c1", "x", time.Time{})
		b.AuthorName = "someone-else"
		assert.Empty(t, application.Diff(snapshot(a), snapshot(b)))
	})

	t.Run("two seconds apart reports change", func(t *testing.T) {
		current := comment("c1", "after", baseTime.Add(2*time.Second))
		events := application.Diff(snapshot(old), snapshot(current))
		require.Len(t, events, 1)
		assert.Equal(t, model.EventEdit, events[0].Type)
	})

	t.Run("one side missing reports change", func(t *testing.T) {
		current := comment("c1", "after", time.Time{})
		events := application.Diff(snapshot(old), snapshot(current))
		require.Len(t, events, 1)
		assert.Equal(t, model.EventEdit, events[0].Type)
	})
}

func TestDiff_NewComment(t *testing.T) {
	old := snapshot(comment("c1", "first", baseTime))
	current := snapshot(
		comment("c1", "first", baseTime),
		comment("c2", "second", baseTime),
	)

	events := application.Diff(old, current)

	require.Len(t, events, 1)
	assert.Equal(t, model.EventNew, events[0].Type)
	assert.Equal(t, "c2", events[0].Comment.ID)
	assert.Equal(t, "second", events[0].Comment.Content)
}

func TestDiff_DeletedCommentCarriesOldData(t *testing.T) {
	old := snapshot(
		comment("c1", "first", baseTime),
		comment("c2", "going away", baseTime),
	)
	current := snapshot(comment("c1", "first", baseTime))

	events := application.Diff(old, current)

	require.Len(t, events, 1)
	assert.Equal(t, model.EventDelete, events[0].Type)
	assert.Equal(t, "c2", events[0].Comment.ID)
	assert.Equal(t, "going away", events[0].Comment.Content)
}

func TestDiff_ResolvedToggle(t *testing.T) {
	later := baseTime.Add(time.Minute)

	t.Run("false to true emits Resolve", func(t *testing.T) {
		current := comment("c1", "first", later)
		current.Resolved = true

		events := application.Diff(snapshot(comment("c1", "first", baseTime)), snapshot(current))

		require.Len(t, events, 1)
		assert.Equal(t, model.EventResolve, events[0].Type)
	})

	t.Run("true to false emits Unresolve", func(t *testing.T) {
		old := comment("c1", "first", baseTime)
		old.Resolved = true

		events := application.Diff(snapshot(old), snapshot(comment("c1", "first", later)))

		require.Len(t, events, 1)
		assert.Equal(t, model.EventUnresolve, events[0].Type)
	})

	t.Run("resolve wins over simultaneous content change", func(t *testing.T) {
		current := comment("c1", "rewritten", later)
		current.Resolved = true

		events := application.Diff(snapshot(comment("c1", "first", baseTime)), snapshot(current))

		require.Len(t, events, 1)
		assert.Equal(t, model.EventResolve, events[0].Type)
		assert.Equal(t, "rewritten", events[0].Comment.Content)
	})
}

func TestDiff_MetadataChange(t *testing.T) {
	later := baseTime.Add(time.Minute)

	mutations := map[string]func(c *model.Comment){
		"author id":   func(c *model.Comment) { c.AuthorID = "u-2" },
		"author name": func(c *model.Comment) { c.AuthorName = "hubot" },
		"parent id":   func(c *model.Comment) { c.ParentID = "c0" },
		"position":    func(c *model.Comment) { c.Position = "main.go:12" },
	}

	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			current := comment("c1", "same", later)
			mutate(&current)

			events := application.Diff(snapshot(comment("c1", "same", baseTime)), snapshot(current))

			require.Len(t, events, 1)
			assert.Equal(t, model.EventEdit, events[0].Type)
			assert.Equal(t, "comment metadata changed", events[0].Reason)
		})
	}

	t.Run("only update time moved", func(t *testing.T) {
		events := application.Diff(snapshot(comment("c1", "same", baseTime)), snapshot(comment("c1", "same", later)))
		assert.Empty(t, events)
	})
}

func TestDiff_Ordering(t *testing.T) {
	later := baseTime.Add(time.Minute)
	old := snapshot(
		comment("gone-1", "x", baseTime),
		comment("keep", "x", baseTime),
		comment("gone-2", "x", baseTime),
	)
	current := snapshot(
		comment("new-b", "x", baseTime),
		comment("keep", "edited", later),
		comment("new-a", "x", baseTime),
	)

	first := application.Diff(old, current)
	second := application.Diff(old, current)

	ids := make([]string, len(first))
	for i, e := range first {
		ids[i] = e.Comment.ID
	}
	assert.Equal(t, []string{"new-b", "keep", "new-a", "gone-1", "gone-2"}, ids)
	assert.Equal(t, []model.EventType{
		model.EventNew, model.EventEdit, model.EventNew, model.EventDelete, model.EventDelete,
	}, eventTypes(first))
	assert.Equal(t, first, second)
}
