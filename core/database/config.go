package database

import coreconfig "github.com/m3rciful/facetbot/core/config"

// Config holds the Postgres connection settings.
type Config = coreconfig.DatabaseConfig
