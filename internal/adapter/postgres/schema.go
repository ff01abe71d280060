package postgres

import (
	"context"
	_ "embed"
	"fmt"
	"strings"
)

// SchemaSQL is the reference DDL for the three telemetry relations. The
// service never applies it on its own; it is exported for test databases
// and operator tooling.
//
//go:embed schema.sql
var SchemaSQL string

// ApplySchema executes the reference DDL statement by statement. Test
// helper; production schemas are managed out of band.
func (s *Store) ApplySchema(ctx context.Context) error {
	for _, stmt := range strings.Split(SchemaSQL, ";") {
		if isBlank(stmt) {
			continue
		}
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

// isBlank reports whether a schema chunk holds no statement, only
// whitespace and line comments.
func isBlank(stmt string) bool {
	for _, line := range strings.Split(stmt, "\n") {
		line = strings.TrimSpace(line)
		if line != "" && !strings.HasPrefix(line, "--") {
			return false
		}
	}
	return true
}
