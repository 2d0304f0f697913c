package migrations

import (
	_ "embed"
)

//go:embed 0002_create_accounts.sql
var createAccountsSQL string

func init() {
	Migrations.MustRegister(
		execSQL(createAccountsSQL),
		execSQL(`DROP TABLE IF EXISTS accounts`),
	)
}
