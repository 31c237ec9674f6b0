package migrate

import "fmt"

// Revision 0001_init lays out the four core tables: identifiers (tracked
// compilation units), user accounts, and the files and passes attached to
// identifiers. files and passes hold cascading foreign keys into
// identifiers, so identifiers is created first and dropped last.
//
// No IF NOT EXISTS here: applying onto a database that already has these
// tables must fail, and transactional DDL leaves it untouched.
func init() {
	register(Migration{
		Revision:     "0001_init",
		DownRevision: "",
		Name:         "create identifiers, user, files and passes",
		Up:           initUp,
		Down:         initDown,
	})
}

// serialPK spells an auto-incrementing integer primary key for the dialect.
func serialPK(d Dialect) string {
	if d == DialectPostgres {
		return "SERIAL PRIMARY KEY"
	}
	return "INTEGER PRIMARY KEY AUTOINCREMENT"
}

func initUp(d Dialect) []string {
	return []string{
		fmt.Sprintf(`CREATE TABLE identifiers (
    id              %s,
    identifier_text TEXT NOT NULL
)`, serialPK(d)),
		`CREATE INDEX ix_identifiers_id ON identifiers (id)`,

		// "user" is a reserved word in PostgreSQL, so the name is quoted.
		fmt.Sprintf(`CREATE TABLE "user" (
    id       %s,
    username TEXT,
    email    TEXT
)`, serialPK(d)),
		`CREATE UNIQUE INDEX ix_user_email ON "user" (email)`,
		`CREATE INDEX ix_user_id ON "user" (id)`,
		`CREATE UNIQUE INDEX ix_user_username ON "user" (username)`,

		fmt.Sprintf(`CREATE TABLE files (
    id             %s,
    identifier_ref INTEGER REFERENCES identifiers (id) ON DELETE CASCADE,
    content        TEXT NOT NULL
)`, serialPK(d)),
		`CREATE INDEX ix_files_id ON files (id)`,

		fmt.Sprintf(`CREATE TABLE passes (
    id             %s,
    identifier_ref INTEGER REFERENCES identifiers (id) ON DELETE CASCADE,
    transform_pass TEXT NOT NULL
)`, serialPK(d)),
		`CREATE INDEX ix_passes_id ON passes (id)`,
	}
}

// initDown drops everything in exact reverse order of initUp: children
// before identifiers, each table's indexes before the table.
func initDown(d Dialect) []string {
	return []string{
		`DROP INDEX ix_passes_id`,
		`DROP TABLE passes`,
		`DROP INDEX ix_files_id`,
		`DROP TABLE files`,
		`DROP INDEX ix_user_username`,
		`DROP INDEX ix_user_id`,
		`DROP INDEX ix_user_email`,
		`DROP TABLE "user"`,
		`DROP INDEX ix_identifiers_id`,
		`DROP TABLE identifiers`,
	}
}
