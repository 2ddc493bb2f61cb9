package warehouse

import (
	"context"
	"encoding/json"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/leapstack-labs/lineagebench/pkg/core"
)

// insertBatchSize bounds the rows of one multi-row INSERT.
const insertBatchSize = 500

// builderFor returns a statement builder using the adapter's placeholder style.
func builderFor(db core.Adapter) sq.StatementBuilderType {
	if db.DialectName() == "postgres" {
		return sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	}
	return sq.StatementBuilder.PlaceholderFormat(sq.Question)
}

func qualify(schema, table string) string {
	if schema == "" {
		return table
	}
	return schema + "." + table
}

// insertRows writes rows through the adapter's bulk path when it has one,
// falling back to batched multi-row INSERT statements.
func insertRows(ctx context.Context, db core.Adapter, sb sq.StatementBuilderType, table string, columns []string, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}

	if bulk, ok := db.(core.BulkLoader); ok {
		if _, err := bulk.CopyRows(ctx, table, columns, rows); err != nil {
			return fmt.Errorf("error loading %s: %w", table, err)
		}
		return nil
	}

	for start := 0; start < len(rows); start += insertBatchSize {
		end := min(start+insertBatchSize, len(rows))

		builder := sb.Insert(table).Columns(columns...)
		for _, row := range rows[start:end] {
			builder = builder.Values(row...)
		}

		sql, args, err := builder.ToSql()
		if err != nil {
			return fmt.Errorf("error building insert for %s: %w", table, err)
		}
		if err := db.Exec(ctx, sql, args...); err != nil {
			return fmt.Errorf("error inserting into %s: %w", table, err)
		}
	}
	return nil
}

func encodeList(items []string) string {
	if items == nil {
		items = []string{}
	}
	b, _ := json.Marshal(items)
	return string(b)
}

func decodeList(s string) ([]string, error) {
	var items []string
	if err := json.Unmarshal([]byte(s), &items); err != nil {
		return nil, fmt.Errorf("malformed list %q: %w", s, err)
	}
	return items, nil
}

func nullable(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}
