package economy

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextDailyStreak(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	window := 20 * time.Hour

	tests := []struct {
		name       string
		current    int
		last       time.Time
		wantStreak int
		wantErr    error
	}{
		{
			name:       "first_claim",
			current:    0,
			last:       time.Time{},
			wantStreak: 1,
		},
		{
			name:    "inside_cooldown",
			current: 3,
			last:    now.Add(-19 * time.Hour),
			wantErr: ErrCooldownActive,
		},
		{
			name:       "continues_streak",
			current:    3,
			last:       now.Add(-25 * time.Hour),
			wantStreak: 4,
		},
		{
			name:       "exactly_at_window_boundary",
			current:    1,
			last:       now.Add(-window),
			wantStreak: 2,
		},
		{
			name:       "gap_resets_streak",
			current:    9,
			last:       now.Add(-41 * time.Hour),
			wantStreak: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			streak, err := nextDailyStreak(tt.current, tt.last, now, window)

			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantStreak, streak)
		})
	}
}

func TestDailyPayout_CapsStreakBonus(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()

	assert.Equal(t, int64(110), dailyPayout(cfg, 1))
	assert.Equal(t, int64(150), dailyPayout(cfg, 5))
	// Bonus caps at DailyBonusCap no matter how long the streak runs.
	assert.Equal(t, int64(200), dailyPayout(cfg, 10))
	assert.Equal(t, int64(200), dailyPayout(cfg, 500))
}

func TestDailySeedBonus_ScalesWithStreak(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig() // milestone interval of 7 days

	// One seed per eligible claim, plus one per completed interval.
	assert.Equal(t, int64(1), dailySeedBonus(cfg, 1))
	assert.Equal(t, int64(1), dailySeedBonus(cfg, 3))
	assert.Equal(t, int64(1), dailySeedBonus(cfg, 6))
	assert.Equal(t, int64(2), dailySeedBonus(cfg, 7))
	assert.Equal(t, int64(2), dailySeedBonus(cfg, 8))
	assert.Equal(t, int64(3), dailySeedBonus(cfg, 14))

	assert.Zero(t, dailySeedBonus(cfg, 0))

	cfg.SeedMilestone = 0
	assert.Zero(t, dailySeedBonus(cfg, 7), "disabled interval grants nothing")
}

func TestNextWorkStreak(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	window := time.Hour

	streak, err := nextWorkStreak(0, time.Time{}, now, window)
	require.NoError(t, err)
	assert.Equal(t, 1, streak)

	_, err = nextWorkStreak(2, now.Add(-30*time.Minute), now, window)
	assert.True(t, errors.Is(err, ErrCooldownActive), "got %v", err)

	streak, err = nextWorkStreak(2, now.Add(-90*time.Minute), now, window)
	require.NoError(t, err)
	assert.Equal(t, 3, streak)

	streak, err = nextWorkStreak(8, now.Add(-3*time.Hour), now, window)
	require.NoError(t, err)
	assert.Equal(t, 1, streak, "long gap resets the streak")
}

func TestWorkPayout(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()

	// 10% of base per streak step, level bonus on top.
	assert.Equal(t, int64(44), workPayout(cfg, 40, 1, 0))
	assert.Equal(t, int64(60), workPayout(cfg, 40, 5, 0))
	assert.Equal(t, int64(80), workPayout(cfg, 40, 10, 0))
	// Streak caps at WorkStreakCap.
	assert.Equal(t, int64(80), workPayout(cfg, 40, 50, 0))
	// Level scaling.
	assert.Equal(t, int64(59), workPayout(cfg, 40, 1, 3))
}

func TestActivities_Catalog(t *testing.T) {
	t.Parallel()

	catalog := Activities()
	require.NotEmpty(t, catalog)

	for name, activity := range catalog {
		assert.Equal(t, name, activity.Name)
		assert.Positive(t, activity.BasePay)

		// Seed-granting activities must sit behind the compliance gate.
		if activity.SeedGrant > 0 {
			assert.Truef(t, activity.Restricted, "activity %q grants seeds without restriction", name)
		}
	}
}
