package migrations

import (
	_ "embed"
)

//go:embed 0004_create_ratings.sql
var createRatingsSQL string

func init() {
	Migrations.MustRegister(
		execSQL(createRatingsSQL),
		execSQL(`DROP TABLE IF EXISTS user_badges; DROP TABLE IF EXISTS ratings`),
	)
}
