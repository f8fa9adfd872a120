package persist

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/shrek82/jpersist/logger"
	"github.com/shrek82/jpersist/store"
)

// faultyStore wraps a store so tests can break updates and rollbacks.
type faultyStore struct {
	store.Store
	update   func(ctx context.Context) error
	rollback error
}

func (s *faultyStore) Begin(ctx context.Context) (store.Tx, error) {
	tx, err := s.Store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &faultyTx{Tx: tx, s: s}, nil
}

type faultyTx struct {
	store.Tx
	s *faultyStore
}

func (t *faultyTx) Update(ctx context.Context, table string, row map[string]any, where ...store.Predicate) (int64, error) {
	if t.s.update != nil {
		if err := t.s.update(ctx); err != nil {
			return 0, err
		}
	}
	return t.Tx.Update(ctx, table, row, where...)
}

func (t *faultyTx) Rollback() error {
	err := t.Tx.Rollback()
	if t.s.rollback != nil {
		return t.s.rollback
	}
	return err
}

func TestPanicIsReportedAsFailure(t *testing.T) {
	f := newFixture(t, 0)
	st := &faultyStore{Store: f.db, update: func(context.Context) error { panic("update exploded") }}
	e := New(st, f.reg, 0)
	e.SetLogger(logger.Discard())

	var got []Stats
	e.AddObserver(ObserverFunc(func(s Stats) { got = append(got, s) }))

	func() {
		defer func() {
			if p := recover(); p != "update exploded" {
				t.Errorf("Expected the panic to propagate, got %v", p)
			}
		}()
		e.WriteObject(context.Background(), "Shop", []byte(`{"id":1,"name":"A"}`))
	}()

	if len(got) != 1 {
		t.Fatalf("Expected one observation, got %d", len(got))
	}
	if got[0].Err == nil || !strings.Contains(got[0].Err.Error(), "update exploded") {
		t.Errorf("Expected the panic as error, got %v", got[0].Err)
	}
	if n := f.count(t, "SELECT count(*) FROM shops"); n != 0 {
		t.Errorf("Expected the write to be rolled back, got %d shops", n)
	}
}

func TestRollbackAfterCancel(t *testing.T) {
	f := newFixture(t, 0)

	cases := map[string]error{
		"done":   &store.Error{Op: "rollback", Err: store.ErrTxDone},
		"failed": &store.Error{Op: "rollback", Err: context.Canceled},
	}
	for name, rbErr := range cases {
		t.Run(name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			st := &faultyStore{
				Store: f.db,
				update: func(ctx context.Context) error {
					cancel()
					return ctx.Err()
				},
				rollback: rbErr,
			}
			buf := &bytes.Buffer{}
			l := logger.NewStdLogger()
			l.SetOutput(buf)
			e := New(st, f.reg, 0)
			e.SetLogger(l)

			if _, err := e.WriteObject(ctx, "Shop", []byte(`{"id":1,"name":"A"}`)); err == nil {
				t.Fatal("Expected the cancelled write to fail")
			}
			logged := strings.Contains(buf.String(), "rollback of Shop failed")
			if logged != (name == "failed") {
				t.Errorf("Unexpected rollback log state %v: %s", logged, buf.String())
			}
		})
	}
}
