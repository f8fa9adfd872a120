package store

import (
	"context"
	"fmt"
	"strconv"

	"github.com/shrek82/jpersist/dialect"
	"github.com/shrek82/jpersist/model"
)

// AutoMigrate creates the tables of the named records, and of every record
// they reach through relations and collections, when they don't exist.
// Existing tables are left untouched.
func (db *DB) AutoMigrate(ctx context.Context, reg *model.Registry, records ...string) error {
	tables, err := tableSet(reg, records)
	if err != nil {
		return err
	}

	for _, rt := range tables {
		exists, err := db.HasTable(ctx, rt.TableName)
		if err != nil {
			return err
		}
		if exists {
			continue
		}

		columns, err := tableColumns(reg, rt)
		if err != nil {
			return err
		}
		createSQL := db.dialect.CreateTableSQL(rt.TableName, columns)
		if _, err := db.run(ctx, db.pool, &Statement{Op: "migrate", Table: rt.TableName, SQL: createSQL}); err != nil {
			return err
		}
		db.logger.Info("created table %s", rt.TableName)
	}
	return nil
}

// DropTables drops the tables AutoMigrate would create for records.
func (db *DB) DropTables(ctx context.Context, reg *model.Registry, records ...string) error {
	tables, err := tableSet(reg, records)
	if err != nil {
		return err
	}
	for i := len(tables) - 1; i >= 0; i-- {
		table := tables[i].TableName
		if _, err := db.run(ctx, db.pool, &Statement{Op: "migrate", Table: table, SQL: db.dialect.DropTableSQL(table)}); err != nil {
			return err
		}
	}
	return nil
}

// HasTable reports whether table exists.
func (db *DB) HasTable(ctx context.Context, table string) (bool, error) {
	query, args := db.dialect.HasTableSQL(table)
	res, err := db.run(ctx, db.pool, &Statement{Op: "select", Table: table, SQL: query, Args: args, query: true})
	if err != nil {
		return false, err
	}
	n, err := countOf(res.Value)
	if err != nil {
		return false, wrapErr(db.dialect, "select", table, err)
	}
	return n > 0, nil
}

// tableSet resolves records and everything reachable from them, in discovery order.
func tableSet(reg *model.Registry, records []string) ([]*model.RecordType, error) {
	var out []*model.RecordType
	seen := make(map[string]bool)
	tables := make(map[string]string)
	queue := append([]string(nil), records...)

	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		if seen[name] {
			continue
		}
		seen[name] = true

		rt, err := reg.Resolve(name)
		if err != nil {
			return nil, err
		}
		if other, ok := tables[rt.TableName]; ok {
			return nil, fmt.Errorf("%w: records %s and %s share table %s", model.ErrSchema, other, name, rt.TableName)
		}
		tables[rt.TableName] = name
		out = append(out, rt)

		for _, f := range rt.AllFields() {
			switch f.Kind {
			case model.KindRelation:
				queue = append(queue, f.Target)
			case model.KindCollection:
				queue = append(queue, f.Collection.Target)
				if f.Collection.Other != "" {
					queue = append(queue, f.Collection.Other)
				}
			}
		}
	}
	return out, nil
}

func tableColumns(reg *model.Registry, rt *model.RecordType) ([]dialect.Column, error) {
	var columns []dialect.Column
	seen := make(map[string]bool)
	for _, f := range rt.Columns() {
		if seen[f.Column] {
			continue
		}
		seen[f.Column] = true

		col := dialect.Column{Name: f.Column, Kind: f.Scalar, Nullable: f.Nullable}
		switch f.Kind {
		case model.KindIdentity:
			col.PrimaryKey = true
			col.AutoIncrement = f.Generated
		case model.KindRelation:
			target, err := reg.Resolve(f.Target)
			if err != nil {
				return nil, err
			}
			col.Kind = target.Identity().Scalar
			col.Nullable = true
		}
		columns = append(columns, col)
	}
	return columns, nil
}

func countOf(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int32:
		return int64(n), nil
	case int:
		return int64(n), nil
	case float64:
		return int64(n), nil
	case []byte:
		return strconv.ParseInt(string(n), 10, 64)
	case string:
		return strconv.ParseInt(n, 10, 64)
	case nil:
		return 0, nil
	}
	return 0, fmt.Errorf("unexpected count type %T", v)
}
