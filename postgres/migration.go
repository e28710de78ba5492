// Copyright 2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package postgres

import (
	"database/sql"

	"github.com/rubenv/sql-migrate"
)

// This file maintains the database migration code.  See
// https://github.com/rubenv/sql-migrate for details of what goes in
// here.  This runs "outside" the normal store flow, either at initial
// startup or from an external tool.

var migrationSource = &migrate.MemoryMigrationSource{
	Migrations: []*migrate.Migration{
		{
			Id: "1_schedule_event.sql",
			Up: []string{
				`CREATE TABLE ` + eventTable + `(
					id BIGINT PRIMARY KEY,
					entity_id BIGINT NOT NULL,
					start_time TIMESTAMP WITH TIME ZONE NOT NULL,
					end_time TIMESTAMP WITH TIME ZONE NOT NULL,
					version BIGINT NOT NULL,
					versions BYTEA NOT NULL,
					data BYTEA NOT NULL,
					updated TIMESTAMP WITH TIME ZONE
				)`,
				`CREATE INDEX schedule_event_entity_start ON ` +
					eventTable + `(entity_id, start_time)`,
			},
			Down: []string{
				`DROP TABLE ` + eventTable,
			},
		},
	},
}

// Upgrade upgrades a database to the latest database schema version.
func Upgrade(db *sql.DB) error {
	_, err := migrate.Exec(db, "postgres", migrationSource, migrate.Up)
	return err
}

// Drop clears a database by running all of the migrations in reverse,
// ultimately resulting in dropping all of the tables.
func Drop(db *sql.DB) error {
	_, err := migrate.Exec(db, "postgres", migrationSource, migrate.Down)
	return err
}
