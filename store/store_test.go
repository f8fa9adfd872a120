package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/shrek82/jpersist/logger"
	"github.com/shrek82/jpersist/model"
	"github.com/shrek82/jpersist/value"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "store.db")
	db, err := Open("sqlite3", dsn, &Options{MaxOpenConns: 1, WAL: true, Logger: logger.Discard()})
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func testRegistry(t *testing.T) *model.Registry {
	t.Helper()
	reg := model.NewRegistry()
	err := reg.Add(
		&model.RecordType{Name: "Team", Table: true, Fields: []*model.Field{
			{Name: "id", Kind: model.KindIdentity, Scalar: value.Int64, Generated: true},
			{Name: "name", Kind: model.KindScalar, Scalar: value.String},
			{Name: "members", Kind: model.KindCollection, Collection: &model.Collection{Target: "Member"}},
		}},
		&model.RecordType{Name: "Member", Table: true, Fields: []*model.Field{
			{Name: "id", Kind: model.KindIdentity, Scalar: value.String},
			{Name: "score", Kind: model.KindScalar, Scalar: value.Float64},
			{Name: "team", Kind: model.KindRelation, Target: "Team"},
		}},
	)
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	return reg
}

func migrated(t *testing.T) *DB {
	t.Helper()
	db := openTestDB(t)
	if err := db.AutoMigrate(context.Background(), testRegistry(t), "Team"); err != nil {
		t.Fatalf("AutoMigrate failed: %v", err)
	}
	return db
}

func TestAutoMigrate(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	reg := testRegistry(t)

	if err := db.AutoMigrate(ctx, reg, "Team"); err != nil {
		t.Fatalf("AutoMigrate failed: %v", err)
	}
	for _, table := range []string{"team", "member"} {
		ok, err := db.HasTable(ctx, table)
		if err != nil || !ok {
			t.Errorf("Expected table %s to exist (err=%v)", table, err)
		}
	}
	if err := db.AutoMigrate(ctx, reg, "Team", "Member"); err != nil {
		t.Errorf("Expected a second AutoMigrate to be a no-op, got %v", err)
	}

	if err := db.DropTables(ctx, reg, "Team"); err != nil {
		t.Fatalf("DropTables failed: %v", err)
	}
	if ok, _ := db.HasTable(ctx, "member"); ok {
		t.Error("Expected member to be dropped")
	}
}

func TestTxRoundTrip(t *testing.T) {
	ctx := context.Background()
	db := migrated(t)

	err := db.Transaction(ctx, func(tx Tx) error {
		id, err := tx.Insert(ctx, "team", map[string]any{}, "id")
		if err != nil {
			return err
		}
		if id != int64(1) {
			t.Errorf("Expected generated id 1, got %v (%T)", id, id)
		}
		if n, err := tx.Update(ctx, "team", map[string]any{"name": "red"}, Eq("id", id)); err != nil || n != 1 {
			t.Errorf("Update: n=%d err=%v", n, err)
		}

		for _, m := range []string{"a", "b", "c"} {
			if _, err := tx.Insert(ctx, "member", map[string]any{"id": m, "score": 1.5}, ""); err != nil {
				return err
			}
		}
		n, err := tx.Update(ctx, "member", map[string]any{"team_id": id}, In("id", "a", "b", "c"))
		if err != nil || n != 3 {
			t.Errorf("Expected 3 members linked, n=%d err=%v", n, err)
		}
		n, err = tx.Delete(ctx, "member", Eq("team_id", id), NotIn("id", "b"))
		if err != nil || n != 2 {
			t.Errorf("Expected 2 members deleted, n=%d err=%v", n, err)
		}

		found, err := tx.QueryIdentity(ctx, "member", "id", "b")
		if err != nil || !found {
			t.Errorf("Expected member b to exist (err=%v)", err)
		}
		found, err = tx.QueryIdentity(ctx, "member", "id", "a")
		if err != nil || found {
			t.Errorf("Expected member a to be gone (err=%v)", err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Transaction failed: %v", err)
	}
}

func TestEmptyPredicates(t *testing.T) {
	ctx := context.Background()
	db := migrated(t)

	err := db.Transaction(ctx, func(tx Tx) error {
		for _, m := range []string{"x", "y"} {
			if _, err := tx.Insert(ctx, "member", map[string]any{"id": m, "team_id": 9}, ""); err != nil {
				return err
			}
		}
		if n, err := tx.Update(ctx, "member", map[string]any{"score": 2.0}, In("id")); err != nil || n != 0 {
			t.Errorf("Expected empty IN to match nothing, n=%d err=%v", n, err)
		}
		if n, err := tx.Delete(ctx, "member", Eq("team_id", 9), NotIn("id")); err != nil || n != 2 {
			t.Errorf("Expected empty NOT IN to match every child, n=%d err=%v", n, err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Transaction failed: %v", err)
	}
}

func TestRollbackOnError(t *testing.T) {
	ctx := context.Background()
	db := migrated(t)

	boom := errors.New("boom")
	err := db.Transaction(ctx, func(tx Tx) error {
		if _, err := tx.Insert(ctx, "member", map[string]any{"id": "z"}, ""); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Expected boom, got %v", err)
	}

	tx, err := db.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	defer tx.Rollback()
	if found, _ := tx.QueryIdentity(ctx, "member", "id", "z"); found {
		t.Error("Expected the insert to be rolled back")
	}
}

func TestConstraintErrors(t *testing.T) {
	ctx := context.Background()
	db := migrated(t)

	tx, err := db.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	defer tx.Rollback()

	if _, err := tx.Insert(ctx, "member", map[string]any{"id": "dup"}, ""); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	_, err = tx.Insert(ctx, "member", map[string]any{"id": "dup"}, "")
	if !errors.Is(err, ErrStore) || !errors.Is(err, ErrDuplicateKey) {
		t.Fatalf("Expected a duplicate-key store error, got %v", err)
	}
	var se *Error
	if !errors.As(err, &se) || se.Op != "insert" || se.Table != "member" {
		t.Errorf("Unexpected error payload %+v", se)
	}

	_, err = tx.Insert(ctx, "nope", map[string]any{"id": 1}, "")
	if !errors.Is(err, ErrStore) || errors.Is(err, ErrDuplicateKey) {
		t.Errorf("Expected a plain store error, got %v", err)
	}
}

func TestTxDone(t *testing.T) {
	ctx := context.Background()
	db := migrated(t)

	tx, err := db.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	if _, err := tx.Delete(ctx, "member"); !errors.Is(err, ErrTxDone) {
		t.Errorf("Expected ErrTxDone, got %v", err)
	}
	if err := tx.Rollback(); !errors.Is(err, ErrTxDone) {
		t.Errorf("Expected ErrTxDone on rollback, got %v", err)
	}
}

func TestMiddlewareOrder(t *testing.T) {
	ctx := context.Background()
	db := migrated(t)

	var seen []string
	record := func(name string) Middleware {
		return MiddlewareFunc(func(ctx context.Context, stmt *Statement, next ExecFunc) (*Result, error) {
			seen = append(seen, name+":"+stmt.Op)
			return next(ctx, stmt)
		})
	}
	db.Use(record("outer"), record("inner"))

	err := db.Transaction(ctx, func(tx Tx) error {
		_, err := tx.Insert(ctx, "team", map[string]any{"name": "blue"}, "id")
		return err
	})
	if err != nil {
		t.Fatalf("Transaction failed: %v", err)
	}
	if len(seen) != 2 || seen[0] != "outer:insert" || seen[1] != "inner:insert" {
		t.Errorf("Unexpected middleware order %v", seen)
	}
}

func TestUnknownDialect(t *testing.T) {
	if _, err := Open("oracle", "", nil); !errors.Is(err, ErrUnknownDialect) {
		t.Errorf("Expected ErrUnknownDialect, got %v", err)
	}
}
