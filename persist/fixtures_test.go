package persist

import (
	"context"
	"path/filepath"
	"sort"
	"testing"

	"github.com/shrek82/jpersist/logger"
	"github.com/shrek82/jpersist/model"
	"github.com/shrek82/jpersist/store"
	"github.com/shrek82/jpersist/value"
)

type Shop struct {
	model.Table `jpersist:"table:shops"`
	ID          int64       `json:"id" jpersist:"pk auto"`
	Name        string      `json:"name"`
	Items       []Item      `json:"items"`
	Labels      []ShopLabel `json:"labels" jpersist:"many2many:Label"`
	Aliases     []Alias     `json:"aliases" jpersist:"single:alias"`
}

type Item struct {
	model.Table `jpersist:"table:items"`
	ID          int64  `json:"id" jpersist:"pk"`
	Title       string `json:"title"`
	Shop        *Shop  `json:"shop"`
}

type Label struct {
	model.Table `jpersist:"table:labels"`
	ID          string `json:"id" jpersist:"pk"`
	Text        string `json:"text"`
}

type ShopLabel struct {
	model.Table `jpersist:"table:shop_labels"`
	ID          int64  `json:"id" jpersist:"pk auto"`
	Shop        *Shop  `json:"shop"`
	Label       *Label `json:"label"`
}

// Stage inherits its identity from Venue; Slot points back at the base.
type Venue struct {
	model.Table `jpersist:"table:venues"`
	ID          int64  `json:"id" jpersist:"pk auto"`
	Name        string `json:"name"`
}

type Stage struct {
	model.Table `jpersist:"table:stages"`
	Venue
	Capacity int64  `json:"capacity"`
	Slots    []Slot `json:"slots"`
}

type Slot struct {
	model.Table `jpersist:"table:slots"`
	ID          int64  `json:"id" jpersist:"pk"`
	Act         string `json:"act"`
	Venue       *Venue `json:"venue"`
}

type Alias struct {
	model.Table `jpersist:"table:aliases"`
	ID          int64  `json:"id" jpersist:"pk auto"`
	Alias       string `json:"alias"`
	Shop        *Shop  `json:"shop"`
}

// sampleType covers every scalar kind. Its identity also answers to "key".
var sampleType = &model.RecordType{
	Name:      "Sample",
	TableName: "samples",
	Table:     true,
	Fields: []*model.Field{
		{Name: "id", From: "key", Kind: model.KindIdentity, Scalar: value.Int32},
		{Name: "small", Kind: model.KindScalar, Scalar: value.Int32},
		{Name: "big", Kind: model.KindScalar, Scalar: value.Int64},
		{Name: "flag", Kind: model.KindScalar, Scalar: value.Bool},
		{Name: "text", Kind: model.KindScalar, Scalar: value.String, Nullable: true},
		{Name: "ratio", Kind: model.KindScalar, Scalar: value.Float32},
		{Name: "amount", Kind: model.KindScalar, Scalar: value.Float64},
		{Name: "extra", Kind: model.KindScalar, Scalar: value.Any},
	},
}

var counterType = &model.RecordType{
	Name:      "Counter",
	TableName: "counters",
	Table:     true,
	Fields: []*model.Field{
		{Name: "id", Kind: model.KindIdentity, Scalar: value.Int32, Generated: true},
		{Name: "name", Kind: model.KindScalar, Scalar: value.String, Nullable: true},
	},
}

type fixture struct {
	db     *store.DB
	reg    *model.Registry
	engine *Engine
}

func newFixture(t *testing.T, opts Option) *fixture {
	t.Helper()
	return openFixture(t, "sqlite3", filepath.Join(t.TempDir(), "persist.db"), opts)
}

// openFixture recreates the test tables on the given database.
func openFixture(t *testing.T, driver, dsn string, opts Option) *fixture {
	t.Helper()
	ctx := context.Background()

	db, err := store.Open(driver, dsn, &store.Options{MaxOpenConns: 1, WAL: true, Logger: logger.Discard()})
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	reg := model.NewRegistry()
	if err := reg.Register(&Shop{}, &Stage{}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := reg.Add(sampleType, counterType); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := db.DropTables(ctx, reg, "Shop", "Item", "Sample", "Counter", "Stage"); err != nil {
		t.Fatalf("DropTables failed: %v", err)
	}
	if err := db.AutoMigrate(ctx, reg, "Shop", "Item", "Sample", "Counter", "Stage"); err != nil {
		t.Fatalf("AutoMigrate failed: %v", err)
	}

	return &fixture{db: db, reg: reg, engine: New(db, reg, opts)}
}

func (f *fixture) count(t *testing.T, query string, args ...any) int {
	t.Helper()
	var n int
	if err := f.db.Pool().QueryRowContext(context.Background(), query, args...).Scan(&n); err != nil {
		t.Fatalf("%s: %v", query, err)
	}
	return n
}

func (f *fixture) ids(t *testing.T, query string, args ...any) []int64 {
	t.Helper()
	rows, err := f.db.Pool().QueryContext(context.Background(), query, args...)
	if err != nil {
		t.Fatalf("%s: %v", query, err)
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			t.Fatalf("Scan failed: %v", err)
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		t.Fatalf("%s: %v", query, err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func equalIDs(got []int64, want ...int64) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}
