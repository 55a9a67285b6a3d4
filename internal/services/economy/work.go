package economy

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/capawawa/growmies-economy/internal/infra/pgutils"
	"github.com/capawawa/growmies-economy/internal/repos/accounts"
	"github.com/capawawa/growmies-economy/internal/repos/ledger"
)

// Activity is one work option: a base coin payout, optionally a seed grant,
// optionally restricted to compliance-cleared users.
type Activity struct {
	Name       string
	BasePay    int64
	SeedGrant  int64
	Restricted bool
}

// Activities is the work catalog, keyed by name.
func Activities() map[string]Activity {
	return map[string]Activity{
		"trimmer":   {Name: "trimmer", BasePay: 40},
		"grower":    {Name: "grower", BasePay: 60},
		"courier":   {Name: "courier", BasePay: 50},
		"budtender": {Name: "budtender", BasePay: 80, SeedGrant: 1, Restricted: true},
	}
}

// WorkResult reports one completed shift.
type WorkResult struct {
	Activity string
	Coins    int64
	Seeds    int64
	Streak   int
	Record   *ledger.Record
}

// nextWorkStreak advances the work streak: inside the cooldown the shift is
// rejected, a gap over twice the cooldown resets to one.
func nextWorkStreak(current int, last, now time.Time, window time.Duration) (int, error) {
	if last.IsZero() {
		return 1, nil
	}

	since := now.Sub(last)

	if since < window {
		return 0, fmt.Errorf("%w: next shift in %s", ErrCooldownActive, (window - since).Round(time.Second))
	}

	if since > 2*window {
		return 1, nil
	}

	return current + 1, nil
}

// workPayout scales the activity base by the capped streak (10% per streak
// step) and adds the per-level bonus.
func workPayout(cfg Config, base int64, streak, level int) int64 {
	if streak > cfg.WorkStreakCap {
		streak = cfg.WorkStreakCap
	}

	return base + base*int64(streak)/10 + int64(level)*cfg.WorkLevelBonus
}

// Work runs one shift of the named activity: cooldown and streak state
// machine, level-scaled coin payout, and the seed grant for restricted
// activities. Restricted activities require compliance before any state is
// touched.
func (s *Service) Work(ctx context.Context, userID, guildID, activityName string) (WorkResult, error) {
	activity, ok := Activities()[activityName]
	if !ok {
		return WorkResult{}, fmt.Errorf("%w: %q", ErrUnknownActivity, activityName)
	}

	if activity.Restricted {
		err := s.requireRestrictedAccess(ctx, userID, guildID)
		if err != nil {
			return WorkResult{}, err
		}
	}

	level, err := s.levels.Level(ctx, userID, guildID)
	if err != nil {
		return WorkResult{}, fmt.Errorf("level lookup: %w", err)
	}

	set := s.mgr.Accessors()

	if set.Degraded {
		return WorkResult{}, nil
	}

	now := time.Now()

	var result WorkResult

	err = pgutils.WithTx(ctx, set.DB, func(tx *sql.Tx) error {
		txErr := s.ensureAccount(tx, set, userID, guildID)
		if txErr != nil {
			return txErr
		}

		acct, txErr := set.Accounts.LockForUpdate(tx, userID, guildID)
		if txErr != nil {
			return txErr
		}

		streak, txErr := nextWorkStreak(acct.WorkStreak, acct.LastWorkAt, now, s.cfg.WorkCooldown)
		if txErr != nil {
			return txErr
		}

		coins := workPayout(s.cfg, activity.BasePay, streak, level)

		txErr = set.Accounts.Credit(tx, userID, guildID, accounts.CurrencyCoins, coins)
		if txErr != nil {
			return txErr
		}

		rec := &ledger.Record{
			Reference:          newReference(),
			UserID:             userID,
			GuildID:            guildID,
			Kind:               ledger.OpWorkReward,
			Currency:           accounts.CurrencyCoins,
			Amount:             coins,
			Description:        fmt.Sprintf("work shift: %s, streak %d", activity.Name, streak),
			RequiresRestricted: activity.Restricted,
			ComplianceChecked:  activity.Restricted,
			BalanceAfter:       acct.Coins + coins,
			Status:             ledger.StatusCompleted,
			CompletedAt:        now,
		}

		txErr = set.Ledger.Insert(tx, rec)
		if txErr != nil {
			return txErr
		}

		if activity.SeedGrant > 0 {
			txErr = set.Accounts.Credit(tx, userID, guildID, accounts.CurrencySeeds, activity.SeedGrant)
			if txErr != nil {
				return txErr
			}

			txErr = set.Ledger.Insert(tx, &ledger.Record{
				Reference:          newReference(),
				UserID:             userID,
				GuildID:            guildID,
				Kind:               ledger.OpWorkReward,
				Currency:           accounts.CurrencySeeds,
				Amount:             activity.SeedGrant,
				Description:        fmt.Sprintf("work shift bonus: %s", activity.Name),
				RequiresRestricted: true,
				ComplianceChecked:  true,
				BalanceAfter:       acct.Seeds + activity.SeedGrant,
				Status:             ledger.StatusCompleted,
				CompletedAt:        now,
			})
			if txErr != nil {
				return txErr
			}
		}

		txErr = set.Accounts.MarkWork(tx, userID, guildID, streak, now)
		if txErr != nil {
			return txErr
		}

		result = WorkResult{
			Activity: activity.Name,
			Coins:    coins,
			Seeds:    activity.SeedGrant,
			Streak:   streak,
			Record:   rec,
		}

		return nil
	})

	s.mgr.RecordQuery(err)

	if err != nil {
		return WorkResult{}, fmt.Errorf("work %s: %w", activityName, err)
	}

	return result, nil
}
