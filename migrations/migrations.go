package main

import (
	"github.com/uptrace/bun/migrate"
)

// Migrations holds every schema migration. Each file registers itself from init.
var Migrations = migrate.NewMigrations()
