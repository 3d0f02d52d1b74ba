package praxis_test

import (
	"testing"

	"github.com/fwojciec/praxis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolver(t *testing.T) {
	t.Parallel()

	view := praxis.SessionContext{UserID: "7", ModuleID: "fundamentals"}

	t.Run("none yet after enter", func(t *testing.T) {
		t.Parallel()
		r := praxis.NewResolver()
		r.Enter(view)

		sc, ok := r.Current()
		assert.False(t, ok)
		assert.Equal(t, view, sc)
		assert.True(t, r.Active())
	})

	t.Run("bind makes token current", func(t *testing.T) {
		t.Parallel()
		r := praxis.NewResolver()
		r.Enter(view)
		require.NoError(t, r.Bind("42"))

		sc, ok := r.Current()
		assert.True(t, ok)
		assert.Equal(t, "42", sc.Token)
		assert.Equal(t, "fundamentals", sc.ModuleID)
	})

	t.Run("empty bind is a no-op", func(t *testing.T) {
		t.Parallel()
		r := praxis.NewResolver()
		r.Enter(view)
		require.NoError(t, r.Bind("42"))
		require.NoError(t, r.Bind(""))

		sc, _ := r.Current()
		assert.Equal(t, "42", sc.Token)
	})

	t.Run("same token rebinds", func(t *testing.T) {
		t.Parallel()
		r := praxis.NewResolver()
		r.Enter(view)
		require.NoError(t, r.Bind("42"))
		assert.NoError(t, r.Bind("42"))
	})

	t.Run("different token is refused", func(t *testing.T) {
		t.Parallel()
		r := praxis.NewResolver()
		r.Enter(view)
		require.NoError(t, r.Bind("42"))

		assert.ErrorIs(t, r.Bind("43"), praxis.ErrSessionConflict)
		sc, _ := r.Current()
		assert.Equal(t, "42", sc.Token)
	})

	t.Run("bind without view", func(t *testing.T) {
		t.Parallel()
		r := praxis.NewResolver()
		assert.ErrorIs(t, r.Bind("42"), praxis.ErrNoView)
	})

	t.Run("enter with token counts as bound", func(t *testing.T) {
		t.Parallel()
		r := praxis.NewResolver()
		r.Enter(praxis.SessionContext{UserID: "7", ModuleID: "advanced", Token: "99"})

		sc, ok := r.Current()
		assert.True(t, ok)
		assert.Equal(t, "99", sc.Token)
	})

	t.Run("entering another view clears binding", func(t *testing.T) {
		t.Parallel()
		r := praxis.NewResolver()
		r.Enter(view)
		require.NoError(t, r.Bind("42"))
		r.Enter(praxis.SessionContext{UserID: "7", ModuleID: "advanced"})

		sc, ok := r.Current()
		assert.False(t, ok)
		assert.Equal(t, "advanced", sc.ModuleID)
	})

	t.Run("leave clears everything", func(t *testing.T) {
		t.Parallel()
		r := praxis.NewResolver()
		r.Enter(view)
		require.NoError(t, r.Bind("42"))
		r.Leave()

		sc, ok := r.Current()
		assert.False(t, ok)
		assert.Equal(t, praxis.SessionContext{}, sc)
		assert.False(t, r.Active())
	})
}
