package repository

import (
	"context"
	"database/sql"
	"fmt"
	"slices"

	entsql "entgo.io/ent/dialect/sql"
)

// queryRows runs query and calls scan once per row. Rows are closed before
// it returns so the caller may issue the next statement on the same connection.
func queryRows(ctx context.Context, q Querier, query string, args []any, scan func(*entsql.Rows) error) error {
	rows := &entsql.Rows{}
	if err := q.Query(ctx, query, args, rows); err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		if err := scan(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

func queryIDs(ctx context.Context, q Querier, query string, args []any) ([]int, error) {
	var ids []int
	err := queryRows(ctx, q, query, args, func(rows *entsql.Rows) error {
		var id int
		if err := rows.Scan(&id); err != nil {
			return err
		}
		ids = append(ids, id)
		return nil
	})
	return ids, err
}

func exec(ctx context.Context, q Querier, query string, args []any) (sql.Result, error) {
	var res sql.Result
	if err := q.Exec(ctx, query, args, &res); err != nil {
		return nil, err
	}
	return res, nil
}

// missingIDs returns the ids that have no row in table, in input order.
func missingIDs(ctx context.Context, q Querier, b *entsql.DialectBuilder, table string, ids []int) ([]int, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args := b.Select("id").From(b.Table(table)).Where(entsql.InInts("id", ids...)).Query()
	found, err := queryIDs(ctx, q, query, args)
	if err != nil {
		return nil, fmt.Errorf("check %s ids: %w", table, err)
	}
	var missing []int
	for _, id := range ids {
		if !slices.Contains(found, id) && !slices.Contains(missing, id) {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

// CountRows returns the number of rows in table.
func (db *DB) CountRows(ctx context.Context, table string) (int, error) {
	b := db.builder()
	query, args := b.Select(entsql.Count("*")).From(b.Table(table)).Query()
	var n int
	err := queryRows(ctx, db.Driver, query, args, func(rows *entsql.Rows) error {
		return rows.Scan(&n)
	})
	return n, err
}

// value turns a nil pointer into SQL NULL.
func value[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}

// naturalKey maps a nil or blank natural key to NULL.
func naturalKey(p *string) any {
	if p == nil || *p == "" {
		return nil
	}
	return *p
}

func strPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func intPtr(ni sql.NullInt64) *int {
	if !ni.Valid {
		return nil
	}
	n := int(ni.Int64)
	return &n
}
