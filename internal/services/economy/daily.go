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

// DailyResult reports one daily claim: the coin payout, any seed bonus, and
// the streak after the claim.
type DailyResult struct {
	Coins     int64
	Seeds     int64
	Streak    int
	MaxStreak int
	Record    *ledger.Record
}

// nextDailyStreak advances the streak state machine. Claiming inside the
// cooldown window is rejected; a gap longer than twice the window resets the
// streak to one.
func nextDailyStreak(current int, last, now time.Time, window time.Duration) (int, error) {
	if last.IsZero() {
		return 1, nil
	}

	since := now.Sub(last)

	if since < window {
		return 0, fmt.Errorf("%w: next claim in %s", ErrCooldownActive, (window - since).Round(time.Second))
	}

	if since > 2*window {
		return 1, nil
	}

	return current + 1, nil
}

// dailyPayout is base plus a per-day streak bonus, capped.
func dailyPayout(cfg Config, streak int) int64 {
	bonus := int64(streak) * cfg.DailyStreakBonus
	if bonus > cfg.DailyBonusCap {
		bonus = cfg.DailyBonusCap
	}

	return cfg.DailyBase + bonus
}

// dailySeedBonus is the restricted-currency payout for an eligible claim:
// one seed plus one more per full milestone interval in the streak.
func dailySeedBonus(cfg Config, streak int) int64 {
	if cfg.SeedMilestone <= 0 || streak <= 0 {
		return 0
	}

	return int64(streak/cfg.SeedMilestone) + 1
}

// ClaimDaily runs the daily reward state machine: cooldown check, streak
// advance, coin payout and streak-scaled seed bonus, all committed atomically
// with the claim timestamp. The seed bonus is skipped silently when the user
// lacks restricted access; the coin payout still lands.
func (s *Service) ClaimDaily(ctx context.Context, userID, guildID string) (DailyResult, error) {
	set := s.mgr.Accessors()

	if set.Degraded {
		return DailyResult{}, nil
	}

	now := time.Now()

	var result DailyResult

	err := pgutils.WithTx(ctx, set.DB, func(tx *sql.Tx) error {
		txErr := s.ensureAccount(tx, set, userID, guildID)
		if txErr != nil {
			return txErr
		}

		acct, txErr := set.Accounts.LockForUpdate(tx, userID, guildID)
		if txErr != nil {
			return txErr
		}

		streak, txErr := nextDailyStreak(acct.DailyStreak, acct.LastDailyAt, now, s.cfg.DailyCooldown)
		if txErr != nil {
			return txErr
		}

		maxStreak := acct.MaxDailyStreak
		if streak > maxStreak {
			maxStreak = streak
		}

		coins := dailyPayout(s.cfg, streak)

		txErr = set.Accounts.Credit(tx, userID, guildID, accounts.CurrencyCoins, coins)
		if txErr != nil {
			return txErr
		}

		rec := &ledger.Record{
			Reference:    newReference(),
			UserID:       userID,
			GuildID:      guildID,
			Kind:         ledger.OpDailyReward,
			Currency:     accounts.CurrencyCoins,
			Amount:       coins,
			Description:  fmt.Sprintf("daily reward, streak %d", streak),
			BalanceAfter: acct.Coins + coins,
			Status:       ledger.StatusCompleted,
			CompletedAt:  now,
		}

		txErr = set.Ledger.Insert(tx, rec)
		if txErr != nil {
			return txErr
		}

		seeds := dailySeedBonus(s.cfg, streak)
		if seeds > 0 {
			granted, checkErr := s.checker.IsRestrictedAccessGranted(ctx, userID, guildID)
			if checkErr != nil {
				return fmt.Errorf("compliance check: %w", checkErr)
			}

			if !granted {
				seeds = 0
			}
		}

		if seeds > 0 {
			txErr = set.Accounts.Credit(tx, userID, guildID, accounts.CurrencySeeds, seeds)
			if txErr != nil {
				return txErr
			}

			txErr = set.Ledger.Insert(tx, &ledger.Record{
				Reference:          newReference(),
				UserID:             userID,
				GuildID:            guildID,
				Kind:               ledger.OpDailyReward,
				Currency:           accounts.CurrencySeeds,
				Amount:             seeds,
				Description:        fmt.Sprintf("daily seed bonus, streak %d", streak),
				RequiresRestricted: true,
				ComplianceChecked:  true,
				BalanceAfter:       acct.Seeds + seeds,
				Status:             ledger.StatusCompleted,
				CompletedAt:        now,
			})
			if txErr != nil {
				return txErr
			}
		}

		txErr = set.Accounts.MarkDailyClaim(tx, userID, guildID, streak, maxStreak, now)
		if txErr != nil {
			return txErr
		}

		result = DailyResult{
			Coins:     coins,
			Seeds:     seeds,
			Streak:    streak,
			MaxStreak: maxStreak,
			Record:    rec,
		}

		return nil
	})

	s.mgr.RecordQuery(err)

	if err != nil {
		return DailyResult{}, fmt.Errorf("claim daily: %w", err)
	}

	return result, nil
}
