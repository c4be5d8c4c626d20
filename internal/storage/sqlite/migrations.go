package sqlite

// Schema changes for this project live directly in schema.go's CREATE TABLE
// IF NOT EXISTS statements rather than a numbered migration chain: there is
// exactly one shipped schema version so far.
