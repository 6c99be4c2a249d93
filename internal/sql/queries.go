package sql

import "embed"

// Migrations holds the DDL applied by db.ApplyMigrations, in file name order.
//
//go:embed migrations/*.sql
var Migrations embed.FS

//go:embed queries/fetch_inputevents.sql
var FetchInputEvents string

//go:embed queries/count_inputevents.sql
var CountInputEvents string

//go:embed queries/record_build.sql
var RecordBuild string
