package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/punchamoorthee/visaops/internal/domain"
)

// lookupTables whitelists the read-only tables served as form lookups.
var lookupTables = map[string]string{
	"distributors": "distributors",
	"accounts":     "accounts",
	"activities":   "activities",
}

// IsLookup reports whether name is a known lookup table.
func IsLookup(name string) bool {
	_, ok := lookupTables[name]
	return ok
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern builds an ILIKE pattern matching s literally anywhere in
// the column. Queries using it must declare ESCAPE '\'.
func containsPattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}

// ListLookup returns rows of a lookup table, filtered by code or name when q is set.
func (s *Store) ListLookup(ctx context.Context, name, q string) ([]domain.Lookup, error) {
	table, ok := lookupTables[name]
	if !ok {
		return nil, ErrNotFound
	}
	query := "SELECT id, code, name FROM " + table
	var args []any
	if q = strings.TrimSpace(q); q != "" {
		query += ` WHERE code ILIKE $1 ESCAPE '\' OR name ILIKE $1 ESCAPE '\'`
		args = append(args, containsPattern(q))
	}
	query += " ORDER BY name, id"

	rows, err := s.Db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("lookup query failed: %w", err)
	}
	list, err := pgx.CollectRows(rows, pgx.RowToStructByPos[domain.Lookup])
	if err != nil {
		return nil, fmt.Errorf("lookup scan failed: %w", err)
	}
	return list, nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	var u domain.User
	err := s.Db.QueryRow(ctx,
		"SELECT id, username, name, role, password_hash FROM users WHERE lower(username) = lower($1)",
		username,
	).Scan(&u.ID, &u.Username, &u.Name, &u.Role, &u.PasswordHash)
	if err != nil {
		return nil, mapError(err)
	}
	return &u, nil
}
