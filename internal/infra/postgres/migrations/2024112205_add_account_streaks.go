package migrations

import (
	_ "embed"
)

//go:embed 0005_add_account_streaks.sql
var addAccountStreaksSQL string

func init() {
	Migrations.MustRegister(
		execSQL(addAccountStreaksSQL),
		execSQL(`ALTER TABLE accounts DROP COLUMN IF EXISTS win_streak`),
	)
}
