package db

import (
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// Dialect names as reported by gorm.
const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"
)

// DialectName returns the active database dialect name.
func DialectName(conn *gorm.DB) string {
	if conn == nil || conn.Dialector == nil {
		return ""
	}
	return conn.Dialector.Name()
}

// IsSQLite reports whether the connection uses SQLite.
func IsSQLite(conn *gorm.DB) bool {
	return DialectName(conn) == DialectSQLite
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// ContainsAny builds a case-insensitive "any column contains term" condition
// and its arguments. Wildcards typed by the user match literally.
func ContainsAny(conn *gorm.DB, term string, columns ...string) (string, []any) {
	pattern := "%" + likeEscaper.Replace(term) + "%"
	sqlite := IsSQLite(conn)
	if sqlite {
		pattern = strings.ToLower(pattern)
	}
	parts := make([]string, 0, len(columns))
	args := make([]any, 0, len(columns))
	for _, column := range columns {
		if sqlite {
			parts = append(parts, fmt.Sprintf(`LOWER(%s) LIKE ? ESCAPE '\'`, column))
		} else {
			parts = append(parts, fmt.Sprintf(`%s ILIKE ? ESCAPE '\'`, column))
		}
		args = append(args, pattern)
	}
	return "(" + strings.Join(parts, " OR ") + ")", args
}
