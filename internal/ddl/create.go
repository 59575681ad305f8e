// Package ddl holds the star schema (vendors, zones and the trip fact table)
// as a small dialect-neutral model, and renders it to CREATE TABLE
// statements through a per-backend Dialect.
package ddl

import (
	"fmt"
	"strings"
)

// BuildCreateTableSQL renders t for dialect d.
//
// Each column is rendered as
//
//	<name> <type> [NOT NULL] [UNIQUE]
//
// followed by a PRIMARY KEY clause for the primary-key columns and one
// FOREIGN KEY clause per referencing column. d.IfNotExists wraps the result.
func BuildCreateTableSQL(t TableDef, d Dialect) (string, error) {
	name := strings.TrimSpace(t.Name)
	if name == "" {
		return "", fmt.Errorf("ddl: table name must not be empty")
	}
	if len(t.Columns) == 0 {
		return "", fmt.Errorf("ddl: at least one column is required")
	}
	if d.QuoteIdent == nil || d.QuoteTable == nil || d.ColumnType == nil {
		return "", fmt.Errorf("ddl: incomplete dialect")
	}

	parts := make([]string, 0, len(t.Columns)+2)
	var pks, fks []string

	for _, c := range t.Columns {
		cn := strings.TrimSpace(c.Name)
		if cn == "" {
			return "", fmt.Errorf("ddl: column with empty name in table %s", name)
		}
		if c.Type == String && c.Size <= 0 {
			return "", fmt.Errorf("ddl: string column %s needs a size", cn)
		}

		var sb strings.Builder
		sb.WriteString(d.QuoteIdent(cn))
		sb.WriteByte(' ')
		sb.WriteString(d.ColumnType(c))
		if !c.Nullable {
			sb.WriteString(" NOT NULL")
		}
		if c.Unique {
			sb.WriteString(" UNIQUE")
		}
		parts = append(parts, sb.String())

		if c.PrimaryKey {
			pks = append(pks, d.QuoteIdent(cn))
		}
		if c.References != "" {
			table, col, ok := strings.Cut(c.References, ".")
			if !ok || table == "" || col == "" {
				return "", fmt.Errorf("ddl: column %s: bad reference %q", cn, c.References)
			}
			fks = append(fks, fmt.Sprintf("FOREIGN KEY (%s) REFERENCES %s (%s)",
				d.QuoteIdent(cn), d.QuoteTable(table), d.QuoteIdent(col)))
		}
	}

	if len(pks) > 0 {
		parts = append(parts, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(pks, ", ")))
	}
	parts = append(parts, fks...)

	stmt := fmt.Sprintf("CREATE TABLE %s (\n  %s\n)", d.QuoteTable(name), strings.Join(parts, ",\n  "))
	if d.IfNotExists != nil {
		stmt = d.IfNotExists(name, stmt)
	}
	return stmt, nil
}

// IfNotExistsClause is the IfNotExists used by dialects that support
// CREATE TABLE IF NOT EXISTS.
func IfNotExistsClause(_ string, create string) string {
	return strings.Replace(create, "CREATE TABLE ", "CREATE TABLE IF NOT EXISTS ", 1)
}
