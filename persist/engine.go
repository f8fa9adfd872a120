// Package persist writes JSON documents into relational tables described by a
// model.Registry. Each call maps one document (or each element of an array)
// onto rows, recursing into relations and collections, inside a single store
// transaction.
package persist

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/tidwall/gjson"

	"github.com/shrek82/jpersist/logger"
	"github.com/shrek82/jpersist/model"
	"github.com/shrek82/jpersist/store"
	"github.com/shrek82/jpersist/value"
)

// Engine persists JSON into a Store.
//
// Every write call runs on the caller's goroutine and blocks until its
// transaction has been committed or rolled back. Do not call it from
// goroutines that must stay responsive, such as event loops.
type Engine struct {
	store     store.Store
	registry  *model.Registry
	options   Option
	logger    logger.Logger
	observers []Observer
}

// New creates an engine writing into st with the record types of reg.
// When st exposes a logger (as *store.DB does) the engine logs through it.
func New(st store.Store, reg *model.Registry, opts Option) *Engine {
	e := &Engine{
		store:    st,
		registry: reg,
		options:  opts,
	}
	if l, ok := st.(interface{ Logger() logger.Logger }); ok && l.Logger() != nil {
		e.logger = l.Logger()
	} else {
		e.logger = logger.NewStdLogger()
	}
	return e
}

// SetLogger replaces the engine's logger.
func (e *Engine) SetLogger(l logger.Logger) {
	e.logger = l
}

// Logger returns the engine's logger.
func (e *Engine) Logger() logger.Logger {
	return e.logger
}

// Options returns the flags the engine was created with.
func (e *Engine) Options() Option {
	return e.options
}

// Registry returns the record types the engine maps against.
func (e *Engine) Registry() *model.Registry {
	return e.registry
}

// AddObserver registers observers notified after every write call.
// It must not be called concurrently with writes.
func (e *Engine) AddObserver(obs ...Observer) {
	e.observers = append(e.observers, obs...)
}

// WriteObject persists the JSON object data as record and returns its identity.
// record is a record name, a *model.RecordType or a value of a registered struct.
func (e *Engine) WriteObject(ctx context.Context, record any, data []byte) (any, error) {
	root, err := parse(data)
	if err != nil {
		return nil, err
	}
	if !root.IsObject() {
		return nil, fmt.Errorf("%w: expected an object, got %s", ErrInvalidJSON, value.TypeName(root))
	}
	return e.writeOne(ctx, record, root)
}

// WriteObjectAt persists the object reached by following path, a dotted list
// of object keys, from the root of data.
func (e *Engine) WriteObjectAt(ctx context.Context, record any, data []byte, path string) (any, error) {
	root, err := parse(data)
	if err != nil {
		return nil, err
	}
	obj, err := ResolveObject(root, path)
	if err != nil {
		return nil, err
	}
	return e.writeOne(ctx, record, obj)
}

// WriteArray persists every element of the JSON array data as record and
// returns the identities in element order. All elements share one transaction.
func (e *Engine) WriteArray(ctx context.Context, record any, data []byte) ([]any, error) {
	root, err := parse(data)
	if err != nil {
		return nil, err
	}
	if !root.IsArray() {
		return nil, fmt.Errorf("%w: expected an array, got %s", ErrInvalidJSON, value.TypeName(root))
	}
	return e.writeMany(ctx, record, root)
}

// WriteArrayAt persists the elements of the array reached by following path
// from the root object of data.
func (e *Engine) WriteArrayAt(ctx context.Context, record any, data []byte, path string) ([]any, error) {
	root, err := parse(data)
	if err != nil {
		return nil, err
	}
	arr, err := ResolveArray(root, path)
	if err != nil {
		return nil, err
	}
	return e.writeMany(ctx, record, arr)
}

// Write persists data whichever its shape: an object yields one identity,
// an array one identity per element.
func (e *Engine) Write(ctx context.Context, record any, data []byte) ([]any, error) {
	root, err := parse(data)
	if err != nil {
		return nil, err
	}
	switch {
	case root.IsObject():
		id, err := e.writeOne(ctx, record, root)
		if err != nil {
			return nil, err
		}
		return []any{id}, nil
	case root.IsArray():
		return e.writeMany(ctx, record, root)
	}
	return nil, fmt.Errorf("%w: expected an object or an array, got %s", ErrInvalidJSON, value.TypeName(root))
}

func parse(data []byte) (gjson.Result, error) {
	if !gjson.ValidBytes(data) {
		return gjson.Result{}, fmt.Errorf("%w: malformed document", ErrInvalidJSON)
	}
	return gjson.ParseBytes(data), nil
}

func (e *Engine) writeOne(ctx context.Context, record any, obj gjson.Result) (any, error) {
	var id any
	err := e.transaction(ctx, record, func(w *writer, rt *model.RecordType) error {
		var err error
		id, err = w.writeObject(rt, obj)
		return err
	})
	if err != nil {
		return nil, err
	}
	return id, nil
}

func (e *Engine) writeMany(ctx context.Context, record any, arr gjson.Result) ([]any, error) {
	ids := []any{}
	err := e.transaction(ctx, record, func(w *writer, rt *model.RecordType) error {
		var err error
		arr.ForEach(func(_, elem gjson.Result) bool {
			if !elem.IsObject() {
				err = fmt.Errorf("%w: array element %d is %s, not an object", ErrInvalidJSON, len(ids), value.TypeName(elem))
				return false
			}
			var id any
			if id, err = w.writeObject(rt, elem); err != nil {
				return false
			}
			ids = append(ids, id)
			return true
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// transaction runs fn inside one store transaction, rolling back on error or
// panic, and reports the outcome to the observers.
func (e *Engine) transaction(ctx context.Context, record any, fn func(w *writer, rt *model.RecordType) error) (err error) {
	start := time.Now()
	stats := Stats{Record: recordName(record)}
	defer func() {
		stats.Duration = time.Since(start)
		stats.Err = err
		for _, o := range e.observers {
			o.ObserveWrite(stats)
		}
	}()

	rt, err := e.registry.Lookup(record)
	if err != nil {
		return err
	}
	stats.Record = rt.Name

	tx, err := e.store.Begin(ctx)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			err = fmt.Errorf("panic during write of %s: %v", rt.Name, p)
			panic(p)
		}
	}()

	w := &writer{
		ctx:      ctx,
		tx:       tx,
		registry: e.registry,
		options:  e.options,
		logger:   e.logger,
		stats:    &stats,
	}
	if err = fn(w, rt); err != nil {
		// a cancelled context has already rolled the transaction back
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, store.ErrTxDone) {
			e.logger.Error("rollback of %s failed: %v", rt.Name, rbErr)
		}
		return err
	}
	return tx.Commit()
}

func recordName(record any) string {
	switch r := record.(type) {
	case string:
		return r
	case *model.RecordType:
		return r.Name
	case nil:
		return ""
	}
	typ := reflect.TypeOf(record)
	for typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	return typ.Name()
}
