package persist

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/tidwall/sjson"

	"github.com/shrek82/jpersist/logger"
	"github.com/shrek82/jpersist/model"
	"github.com/shrek82/jpersist/value"
)

func TestSameIdentityUpdatesInPlace(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0)

	id, err := f.engine.WriteObject(ctx, "Shop", []byte(`{"id":1,"name":"A"}`))
	if err != nil {
		t.Fatalf("WriteObject failed: %v", err)
	}
	if id != int64(1) {
		t.Errorf("Expected identity 1, got %v (%T)", id, id)
	}

	doc, _ := sjson.SetBytes([]byte(`{"id":1,"name":"A"}`), "name", "B")
	if _, err := f.engine.WriteObject(ctx, Shop{}, doc); err != nil {
		t.Fatalf("Second WriteObject failed: %v", err)
	}

	if n := f.count(t, "SELECT count(*) FROM shops"); n != 1 {
		t.Fatalf("Expected exactly one row, got %d", n)
	}
	var name string
	if err := f.db.Pool().QueryRowContext(ctx, "SELECT name FROM shops WHERE id = 1").Scan(&name); err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if name != "B" {
		t.Errorf("Expected name B, got %s", name)
	}
}

func TestScalarRoundTrip(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0)

	doc := `{"id":7,"small":"-12","big":9007199254740993,"flag":true,"text":"héllo","ratio":1.5,"amount":-2.25,"extra":"free"}`
	if _, err := f.engine.WriteObject(ctx, "Sample", []byte(doc)); err != nil {
		t.Fatalf("WriteObject failed: %v", err)
	}

	var (
		small  int32
		big    int64
		flag   bool
		text   string
		ratio  float32
		amount float64
		extra  string
	)
	err := f.db.Pool().QueryRowContext(ctx,
		"SELECT small, big, flag, text, ratio, amount, extra FROM samples WHERE id = ?", 7,
	).Scan(&small, &big, &flag, &text, &ratio, &amount, &extra)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if small != -12 || big != 9007199254740993 || !flag || text != "héllo" || ratio != 1.5 || amount != -2.25 || extra != "free" {
		t.Errorf("Unexpected round trip: %d %d %v %q %v %v %q", small, big, flag, text, ratio, amount, extra)
	}

	// explicit null clears a column
	if _, err := f.engine.WriteObject(ctx, "Sample", []byte(`{"id":7,"text":null}`)); err != nil {
		t.Fatalf("WriteObject failed: %v", err)
	}
	if n := f.count(t, "SELECT count(*) FROM samples WHERE id = 7 AND text IS NULL AND big = 9007199254740993"); n != 1 {
		t.Errorf("Expected text cleared and big kept, got %d rows", n)
	}

	// small is not nullable
	if _, err := f.engine.WriteObject(ctx, "Sample", []byte(`{"id":7,"big":1,"small":null}`)); err == nil {
		t.Fatal("Expected null in a NOT NULL column to fail")
	}
	if n := f.count(t, "SELECT count(*) FROM samples WHERE id = 7 AND small = -12 AND big = 9007199254740993"); n != 1 {
		t.Errorf("Expected the failed write to leave the row unchanged, got %d rows", n)
	}
}

func TestOneToManyReplace(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0)

	first := `{"id":1,"items":[{"id":10,"title":"A"},{"id":11,"title":"B"},{"id":12,"title":"C"}]}`
	if _, err := f.engine.WriteObject(ctx, "Shop", []byte(first)); err != nil {
		t.Fatalf("WriteObject failed: %v", err)
	}
	if got := f.ids(t, "SELECT id FROM items WHERE shop_id = 1"); !equalIDs(got, 10, 11, 12) {
		t.Fatalf("Expected children 10,11,12, got %v", got)
	}

	second := `{"id":1,"items":[{"id":11},{"id":13,"title":"D"}]}`
	if _, err := f.engine.WriteObject(ctx, "Shop", []byte(second)); err != nil {
		t.Fatalf("WriteObject failed: %v", err)
	}
	if got := f.ids(t, "SELECT id FROM items WHERE shop_id = 1"); !equalIDs(got, 11, 13) {
		t.Errorf("Expected children 11,13, got %v", got)
	}
	if n := f.count(t, "SELECT count(*) FROM items WHERE id IN (10, 12)"); n != 0 {
		t.Errorf("Expected stale children to be deleted, %d left", n)
	}
	var title string
	if err := f.db.Pool().QueryRowContext(ctx, "SELECT title FROM items WHERE id = 11").Scan(&title); err != nil || title != "B" {
		t.Errorf("Expected child 11 to keep its title, got %q (%v)", title, err)
	}

	// an empty collection detaches every child
	if _, err := f.engine.WriteObject(ctx, "Shop", []byte(`{"id":1,"items":[]}`)); err != nil {
		t.Fatalf("WriteObject failed: %v", err)
	}
	if n := f.count(t, "SELECT count(*) FROM items WHERE shop_id = 1"); n != 0 {
		t.Errorf("Expected no children left, got %d", n)
	}
}

func TestOneToManyWithoutCleanup(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, DisableStaleChildCleanup)

	if _, err := f.engine.WriteObject(ctx, "Shop", []byte(`{"id":1,"items":[{"id":10},{"id":11}]}`)); err != nil {
		t.Fatalf("WriteObject failed: %v", err)
	}
	if _, err := f.engine.WriteObject(ctx, "Shop", []byte(`{"id":1,"items":[{"id":11},{"id":12}]}`)); err != nil {
		t.Fatalf("WriteObject failed: %v", err)
	}
	if got := f.ids(t, "SELECT id FROM items WHERE shop_id = 1"); !equalIDs(got, 10, 11, 12) {
		t.Errorf("Expected child 10 to keep its reference, got %v", got)
	}
}

func TestManyToManyReplace(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0)

	first := `{"id":1,"labels":[{"id":"red","text":"Red"},{"id":"blue"}]}`
	if _, err := f.engine.WriteObject(ctx, "Shop", []byte(first)); err != nil {
		t.Fatalf("WriteObject failed: %v", err)
	}
	if n := f.count(t, "SELECT count(*) FROM shop_labels WHERE shop_id = 1"); n != 2 {
		t.Fatalf("Expected 2 junction rows, got %d", n)
	}

	second := `{"id":1,"labels":[{"id":"green"}]}`
	for i := 0; i < 2; i++ {
		if _, err := f.engine.WriteObject(ctx, "Shop", []byte(second)); err != nil {
			t.Fatalf("WriteObject failed: %v", err)
		}
	}
	if n := f.count(t, "SELECT count(*) FROM shop_labels WHERE shop_id = 1"); n != 1 {
		t.Errorf("Expected the junction rows to be replaced, got %d", n)
	}
	if n := f.count(t, "SELECT count(*) FROM shop_labels WHERE shop_id = 1 AND label_id = 'green'"); n != 1 {
		t.Errorf("Expected green to be linked, got %d", n)
	}
	if n := f.count(t, "SELECT count(*) FROM labels"); n != 3 {
		t.Errorf("Expected targets to survive unlinking, got %d labels", n)
	}

	_, err := f.engine.WriteObject(ctx, "Shop", []byte(`{"id":1,"labels":["red"]}`))
	if !errors.Is(err, value.ErrTypeMismatch) {
		t.Errorf("Expected a type mismatch for a scalar element, got %v", err)
	}
}

func TestGeneratedIdentities(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0)

	seen := make(map[any]bool)
	for i := 0; i < 3; i++ {
		id, err := f.engine.WriteObject(ctx, "Shop", []byte(`{"name":"anon"}`))
		if err != nil {
			t.Fatalf("WriteObject failed: %v", err)
		}
		if _, ok := id.(int64); !ok {
			t.Fatalf("Expected an int64 identity, got %T", id)
		}
		if seen[id] {
			t.Errorf("Identity %v generated twice", id)
		}
		seen[id] = true
	}

	// a null identity is treated as absent
	id, err := f.engine.WriteObject(ctx, "Shop", []byte(`{"id":null}`))
	if err != nil || seen[id] {
		t.Errorf("Expected a fresh identity, got %v (%v)", id, err)
	}

	_, err = f.engine.WriteObject(ctx, "Label", []byte(`{"text":"no key"}`))
	var mismatch *value.TypeMismatchError
	if !errors.As(err, &mismatch) || mismatch.Got != "missing" {
		t.Errorf("Expected a missing string identity to fail, got %v", err)
	}
}

func TestGeneratedKeyOverflow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0)

	id, err := f.engine.WriteObject(ctx, "Counter", []byte(`{"id":2147483647,"name":"max"}`))
	if err != nil {
		t.Fatalf("WriteObject failed: %v", err)
	}
	if id != int32(2147483647) {
		t.Errorf("Expected identity MaxInt32, got %v (%T)", id, id)
	}

	// the store hands out 2147483648 next, which int32 cannot hold
	id, err = f.engine.WriteObject(ctx, "Counter", []byte(`{"name":"next"}`))
	if !errors.Is(err, value.ErrUnsupportedValueType) {
		t.Fatalf("Expected the generated key to be rejected, got %v (%v)", id, err)
	}
	if n := f.count(t, "SELECT count(*) FROM counters"); n != 1 {
		t.Errorf("Expected the new row to be rolled back, got %d rows", n)
	}
}

func TestTypeMismatchLeavesStoreUnchanged(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0)

	_, err := f.engine.WriteObject(ctx, "Shop", []byte(`{"id":"abc"}`))
	var mismatch *value.TypeMismatchError
	if !errors.As(err, &mismatch) || mismatch.Key != "id" {
		t.Fatalf("Expected a type mismatch on id, got %v", err)
	}

	// the failing child comes after rows were already written
	doc := `{"id":1,"name":"A","items":[{"id":10},{"id":"zz"}]}`
	if _, err := f.engine.WriteObject(ctx, "Shop", []byte(doc)); !errors.Is(err, value.ErrTypeMismatch) {
		t.Fatalf("Expected a type mismatch, got %v", err)
	}
	if n := f.count(t, "SELECT count(*) FROM shops"); n != 0 {
		t.Errorf("Expected no shops, got %d", n)
	}
	if n := f.count(t, "SELECT count(*) FROM items"); n != 0 {
		t.Errorf("Expected no items, got %d", n)
	}

	for _, doc := range []string{
		`{"id":2,"items":{"id":10}}`,
		`{"id":2,"items":[1,2]}`,
		`{"id":2,"name":{"first":"x"}}`,
	} {
		if _, err := f.engine.WriteObject(ctx, "Shop", []byte(doc)); !errors.Is(err, value.ErrTypeMismatch) {
			t.Errorf("%s: expected a type mismatch, got %v", doc, err)
		}
	}
}

func TestRelations(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0)

	if _, err := f.engine.WriteObject(ctx, "Item", []byte(`{"id":1,"shop":{"id":5,"name":"S"}}`)); err != nil {
		t.Fatalf("WriteObject failed: %v", err)
	}
	if n := f.count(t, "SELECT count(*) FROM shops WHERE id = 5 AND name = 'S'"); n != 1 {
		t.Errorf("Expected the nested shop to be written, got %d", n)
	}
	if n := f.count(t, "SELECT count(*) FROM items WHERE id = 1 AND shop_id = 5"); n != 1 {
		t.Errorf("Expected item 1 to reference shop 5, got %d", n)
	}

	// a bare scalar references the target by identity
	if _, err := f.engine.WriteObject(ctx, "Item", []byte(`{"id":2,"shop":"5"}`)); err != nil {
		t.Fatalf("WriteObject failed: %v", err)
	}
	if n := f.count(t, "SELECT count(*) FROM items WHERE id = 2 AND shop_id = 5"); n != 1 {
		t.Errorf("Expected item 2 to reference shop 5, got %d", n)
	}

	if _, err := f.engine.WriteObject(ctx, "Item", []byte(`{"id":2,"shop":null}`)); err != nil {
		t.Fatalf("WriteObject failed: %v", err)
	}
	if n := f.count(t, "SELECT count(*) FROM items WHERE id = 2 AND shop_id IS NULL"); n != 1 {
		t.Errorf("Expected item 2 to be detached, got %d", n)
	}

	if _, err := f.engine.WriteObject(ctx, "Item", []byte(`{"id":3,"shop":[5]}`)); !errors.Is(err, value.ErrTypeMismatch) {
		t.Errorf("Expected a type mismatch for an array relation, got %v", err)
	}
}

func TestInheritedBackReference(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0)

	first := `{"id":1,"name":"Main","capacity":500,"slots":[{"id":1,"act":"A"},{"id":2,"act":"B"}]}`
	if _, err := f.engine.WriteObject(ctx, "Stage", []byte(first)); err != nil {
		t.Fatalf("WriteObject failed: %v", err)
	}
	if got := f.ids(t, "SELECT id FROM slots WHERE venue_id = 1"); !equalIDs(got, 1, 2) {
		t.Fatalf("Expected slots 1,2 to point at the stage, got %v", got)
	}
	if n := f.count(t, "SELECT count(*) FROM stages WHERE id = 1 AND name = 'Main' AND capacity = 500"); n != 1 {
		t.Errorf("Expected inherited and own columns in one row, got %d", n)
	}

	second := `{"id":1,"slots":[{"id":2},{"id":3,"act":"C"}]}`
	if _, err := f.engine.WriteObject(ctx, "Stage", []byte(second)); err != nil {
		t.Fatalf("WriteObject failed: %v", err)
	}
	if got := f.ids(t, "SELECT id FROM slots WHERE venue_id = 1"); !equalIDs(got, 2, 3) {
		t.Errorf("Expected slots 2,3, got %v", got)
	}
	if n := f.count(t, "SELECT count(*) FROM slots"); n != 2 {
		t.Errorf("Expected the stale slot to be deleted, got %d slots", n)
	}
	if n := f.count(t, "SELECT count(*) FROM venues"); n != 0 {
		t.Errorf("Expected nothing written to the base table, got %d rows", n)
	}
}

func TestSingleColumnCollection(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0)

	if _, err := f.engine.WriteObject(ctx, "Shop", []byte(`{"id":1,"aliases":["corner","depot"]}`)); err != nil {
		t.Fatalf("WriteObject failed: %v", err)
	}
	if n := f.count(t, "SELECT count(*) FROM aliases WHERE shop_id = 1 AND alias IN ('corner', 'depot')"); n != 2 {
		t.Fatalf("Expected 2 aliases, got %d", n)
	}

	if _, err := f.engine.WriteObject(ctx, "Shop", []byte(`{"id":1,"aliases":["outlet"]}`)); err != nil {
		t.Fatalf("WriteObject failed: %v", err)
	}
	if n := f.count(t, "SELECT count(*) FROM aliases WHERE shop_id = 1"); n != 1 {
		t.Errorf("Expected the aliases to be replaced, got %d", n)
	}

	if _, err := f.engine.WriteObject(ctx, "Shop", []byte(`{"id":1,"aliases":[{"alias":"x"}]}`)); !errors.Is(err, value.ErrTypeMismatch) {
		t.Errorf("Expected a type mismatch for an object element, got %v", err)
	}
}

func TestNullCollectionIsSkipped(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0)
	buf := &bytes.Buffer{}
	l := logger.NewStdLogger()
	l.SetOutput(buf)
	f.engine.SetLogger(l)

	if _, err := f.engine.WriteObject(ctx, "Shop", []byte(`{"id":1,"items":[{"id":10}]}`)); err != nil {
		t.Fatalf("WriteObject failed: %v", err)
	}
	if _, err := f.engine.WriteObject(ctx, "Shop", []byte(`{"id":1,"items":null}`)); err != nil {
		t.Fatalf("WriteObject failed: %v", err)
	}
	if n := f.count(t, "SELECT count(*) FROM items WHERE shop_id = 1"); n != 1 {
		t.Errorf("Expected the children to be left alone, got %d", n)
	}
	if !strings.Contains(buf.String(), "Shop.items is null") {
		t.Errorf("Expected a null collection warning, got %s", buf.String())
	}
}

func TestWriteArrayAndPaths(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0)

	ids, err := f.engine.WriteArray(ctx, "Shop", []byte(`[{"id":1},{"id":2},{"name":"new"}]`))
	if err != nil {
		t.Fatalf("WriteArray failed: %v", err)
	}
	if len(ids) != 3 || ids[0] != int64(1) || ids[1] != int64(2) {
		t.Errorf("Unexpected identities %v", ids)
	}

	doc := []byte(`{"data":{"shop":{"id":20},"more":{"shops":[{"id":21},{"id":22}]},"tags":["x"]}}`)
	id, err := f.engine.WriteObjectAt(ctx, "Shop", doc, "data.shop")
	if err != nil || id != int64(20) {
		t.Errorf("WriteObjectAt: id=%v err=%v", id, err)
	}
	ids, err = f.engine.WriteArrayAt(ctx, "Shop", doc, "data.more.shops.")
	if err != nil || len(ids) != 2 {
		t.Errorf("WriteArrayAt: ids=%v err=%v", ids, err)
	}
	if n := f.count(t, "SELECT count(*) FROM shops"); n != 6 {
		t.Errorf("Expected 6 shops, got %d", n)
	}

	ids, err = f.engine.Write(ctx, "Shop", []byte(`{"id":30}`))
	if err != nil || len(ids) != 1 || ids[0] != int64(30) {
		t.Errorf("Write object: ids=%v err=%v", ids, err)
	}

	pathErrors := []struct {
		name string
		fn   func() error
	}{
		{"missing key", func() error { _, err := f.engine.WriteObjectAt(ctx, "Shop", doc, "data.nope"); return err }},
		{"object path ends at array", func() error { _, err := f.engine.WriteObjectAt(ctx, "Shop", doc, "data.tags"); return err }},
		{"array not last", func() error { _, err := f.engine.WriteObjectAt(ctx, "Shop", doc, "data.tags.x"); return err }},
		{"array path ends at object", func() error { _, err := f.engine.WriteArrayAt(ctx, "Shop", doc, "data.more"); return err }},
		{"empty array path", func() error { _, err := f.engine.WriteArrayAt(ctx, "Shop", doc, ""); return err }},
	}
	for _, tt := range pathErrors {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.fn(); !errors.Is(err, ErrJSONPath) {
				t.Errorf("Expected ErrJSONPath, got %v", err)
			}
		})
	}

	invalid := []struct {
		name string
		fn   func() error
	}{
		{"malformed", func() error { _, err := f.engine.WriteObject(ctx, "Shop", []byte(`{"id":`)); return err }},
		{"array as object", func() error { _, err := f.engine.WriteObject(ctx, "Shop", []byte(`[]`)); return err }},
		{"object as array", func() error { _, err := f.engine.WriteArray(ctx, "Shop", []byte(`{}`)); return err }},
		{"scalar element", func() error { _, err := f.engine.WriteArray(ctx, "Shop", []byte(`[{"id":40},7]`)); return err }},
		{"scalar document", func() error { _, err := f.engine.Write(ctx, "Shop", []byte(`"shop"`)); return err }},
	}
	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.fn(); !errors.Is(err, ErrInvalidJSON) {
				t.Errorf("Expected ErrInvalidJSON, got %v", err)
			}
		})
	}
	if n := f.count(t, "SELECT count(*) FROM shops WHERE id = 40"); n != 0 {
		t.Errorf("Expected the failed array to be rolled back, got %d", n)
	}
}

func TestDuplicateIdentityKey(t *testing.T) {
	f := newFixture(t, 0)
	_, err := f.engine.WriteObject(context.Background(), "Sample", []byte(`{"id":1,"key":2}`))
	if !errors.Is(err, model.ErrRelationResolution) {
		t.Errorf("Expected ErrRelationResolution, got %v", err)
	}
}

func TestUnknownRecord(t *testing.T) {
	f := newFixture(t, 0)
	if _, err := f.engine.WriteObject(context.Background(), "Nope", []byte(`{}`)); !errors.Is(err, model.ErrSchema) {
		t.Errorf("Expected ErrSchema, got %v", err)
	}
}

func TestUnmappedKeyWarnings(t *testing.T) {
	ctx := context.Background()
	for _, opts := range []Option{0, DisableUnmappedKeyWarnings} {
		t.Run(opts.String(), func(t *testing.T) {
			f := newFixture(t, opts)
			buf := &bytes.Buffer{}
			l := logger.NewStdLogger()
			l.SetOutput(buf)
			f.engine.SetLogger(l)

			if _, err := f.engine.WriteObject(ctx, "Shop", []byte(`{"id":1,"bogus":true}`)); err != nil {
				t.Fatalf("WriteObject failed: %v", err)
			}
			warned := strings.Contains(buf.String(), `no field for key "bogus"`)
			if warned == opts.Has(DisableUnmappedKeyWarnings) {
				t.Errorf("Unexpected warning state %v for %s: %s", warned, opts, buf.String())
			}
		})
	}
}

func TestObserver(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0)

	var got []Stats
	f.engine.AddObserver(ObserverFunc(func(s Stats) { got = append(got, s) }))

	if _, err := f.engine.WriteObject(ctx, "Shop", []byte(`{"id":1,"name":"A","items":[{"id":10},{"id":11}]}`)); err != nil {
		t.Fatalf("WriteObject failed: %v", err)
	}
	f.engine.WriteObject(ctx, "Shop", []byte(`{"id":"x"}`))

	if len(got) != 2 {
		t.Fatalf("Expected 2 observations, got %d", len(got))
	}
	s := got[0]
	if s.Record != "Shop" || s.Err != nil || s.Objects != 3 || s.Inserted != 3 || s.Updated != 3 || s.Deleted != 0 {
		t.Errorf("Unexpected stats %+v", s)
	}
	if !errors.Is(got[1].Err, value.ErrTypeMismatch) {
		t.Errorf("Expected the failure to be observed, got %+v", got[1])
	}
}

func TestOptionString(t *testing.T) {
	if s := (DisableStaleChildCleanup | DisableUnmappedKeyWarnings).String(); s != "disable_stale_child_cleanup|disable_unmapped_key_warnings" {
		t.Errorf("Unexpected option string %s", s)
	}
	if s := Option(0).String(); s != "none" {
		t.Errorf("Unexpected option string %s", s)
	}
}
