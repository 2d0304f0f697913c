package migrations

import (
	_ "embed"
)

//go:embed 0003_create_match_records.sql
var createMatchRecordsSQL string

func init() {
	Migrations.MustRegister(
		execSQL(createMatchRecordsSQL),
		execSQL(`DROP TABLE IF EXISTS match_records`),
	)
}
