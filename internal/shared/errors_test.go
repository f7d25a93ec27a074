package shared

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestErrorKindsMatchWithErrorsIs(t *testing.T) {
	err := NotFound("pr", "PR-1")
	require.ErrorIs(t, err, ErrNotFound)
	require.NotErrorIs(t, err, ErrInvalidState)

	wrapped := fmt.Errorf("award: %w", InvalidState("pr %s already awarded", "PR-1"))
	require.ErrorIs(t, wrapped, ErrInvalidState)
	require.Equal(t, KindInvalidState, KindOf(wrapped))
	require.Equal(t, "pr PR-1 already awarded", UserSafeMessage(wrapped))
}

func TestKindOfPlainError(t *testing.T) {
	require.Equal(t, Kind(""), KindOf(fmt.Errorf("boom")))
	require.Equal(t, "internal error", UserSafeMessage(fmt.Errorf("boom")))
}

func TestValidateStruct(t *testing.T) {
	type input struct {
		Name string `validate:"required"`
		Qty  int    `validate:"gt=0"`
	}
	err := ValidateStruct(input{})
	require.ErrorIs(t, err, ErrValidation)
	require.Contains(t, err.Error(), "input.Name failed required")

	require.NoError(t, ValidateStruct(input{Name: "punch", Qty: 2}))
}

func TestMonotonicClockNeverGoesBack(t *testing.T) {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	ticks := []time.Time{base, base.Add(-time.Minute), base.Add(time.Second)}
	i := 0
	c := NewMonotonicClock(func() time.Time {
		t := ticks[i]
		i++
		return t
	})

	require.Equal(t, base, c.Now())
	require.Equal(t, base, c.Now())
	require.Equal(t, base.Add(time.Second), c.Now())
}

func TestPage(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}
	got, p := Page(items, 2, 2)
	require.Equal(t, []int{3, 4}, got)
	require.Equal(t, 3, p.TotalPages)

	got, _ = Page(items, 9, 2)
	require.Empty(t, got)
}
