package migrate

// All returns the declared schema, in order. Additive migrations stay
// re-applicable at IF NOT EXISTS granularity; down paths drop what up
// created and are only reachable through RollbackLast.
func All() []Migration {
	return []Migration{
		{
			Name: "001_create_accounts",
			Up: `
				CREATE TABLE IF NOT EXISTS accounts (
					user_id          TEXT NOT NULL,
					guild_id         TEXT NOT NULL,
					coins            BIGINT NOT NULL DEFAULT 0 CHECK (coins >= 0),
					seeds            BIGINT NOT NULL DEFAULT 0 CHECK (seeds >= 0),
					coins_earned     BIGINT NOT NULL DEFAULT 0,
					coins_spent      BIGINT NOT NULL DEFAULT 0,
					seeds_earned     BIGINT NOT NULL DEFAULT 0,
					seeds_spent      BIGINT NOT NULL DEFAULT 0,
					daily_streak     INT NOT NULL DEFAULT 0,
					max_daily_streak INT NOT NULL DEFAULT 0,
					last_daily_at    TIMESTAMPTZ,
					work_streak      INT NOT NULL DEFAULT 0,
					last_work_at     TIMESTAMPTZ,
					purchases        BIGINT NOT NULL DEFAULT 0,
					gifts_sent       BIGINT NOT NULL DEFAULT 0,
					gifts_received   BIGINT NOT NULL DEFAULT 0,
					metadata         JSONB NOT NULL DEFAULT '{}'::jsonb,
					active           BOOLEAN NOT NULL DEFAULT TRUE,
					created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
					updated_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
					PRIMARY KEY (user_id, guild_id)
				)
			`,
			Down: `DROP TABLE IF EXISTS accounts`,
		},
		{
			Name: "002_create_transactions",
			Up: `
				CREATE TABLE IF NOT EXISTS transactions (
					id                  BIGSERIAL PRIMARY KEY,
					reference           TEXT NOT NULL UNIQUE,
					user_id             TEXT NOT NULL,
					guild_id            TEXT NOT NULL,
					counterparty_id     TEXT,
					kind                TEXT NOT NULL,
					currency            TEXT NOT NULL,
					amount              BIGINT NOT NULL CHECK (amount >= 0),
					description         TEXT NOT NULL DEFAULT '',
					requires_restricted BOOLEAN NOT NULL DEFAULT FALSE,
					restricted_content  BOOLEAN NOT NULL DEFAULT FALSE,
					compliance_checked  BOOLEAN NOT NULL DEFAULT FALSE,
					balance_after       BIGINT NOT NULL,
					status              TEXT NOT NULL DEFAULT 'completed',
					reversal_of         TEXT,
					created_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
					completed_at        TIMESTAMPTZ
				)
			`,
			Down: `DROP TABLE IF EXISTS transactions`,
		},
		{
			Name: "003_transaction_history_index",
			Up: `
				CREATE INDEX IF NOT EXISTS idx_transactions_account_created
				ON transactions (user_id, guild_id, created_at)
			`,
			Down: `DROP INDEX IF EXISTS idx_transactions_account_created`,
		},
		{
			Name: "004_account_total_value_index",
			Up: `
				CREATE INDEX IF NOT EXISTS idx_accounts_guild_total
				ON accounts (guild_id, (coins + seeds * 10) DESC)
			`,
			Down: `DROP INDEX IF EXISTS idx_accounts_guild_total`,
		},
	}
}
