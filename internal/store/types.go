package store

import "database/sql"

// Identifier is a tracked compilation unit. Files and passes attach to it
// and are deleted with it.
type Identifier struct {
	ID   int64
	Text string
}

// User is an account. Username and email are optional but unique when set.
type User struct {
	ID       int64
	Username sql.NullString
	Email    sql.NullString
}

// File is a source file attached to an identifier.
type File struct {
	ID            int64
	IdentifierRef sql.NullInt64
	Content       string
}

// Pass is a recorded compiler transform pass attached to an identifier.
type Pass struct {
	ID            int64
	IdentifierRef sql.NullInt64
	TransformPass string
}
