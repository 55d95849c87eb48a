package columnar

import _ "embed"

// Setup and teardown scripts for the day's transient tables. Both are
// idempotent: setup drops leftovers from a prior failed run before
// creating, teardown only drops what exists.

//go:embed scripts/setup.sql
var SetupScript string

//go:embed scripts/teardown.sql
var TeardownScript string
