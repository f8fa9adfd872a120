// Package jpersist mirrors JSON documents into relational tables.
//
//	reg := jpersist.NewRegistry()
//	reg.Register(&User{})
//	db, _ := jpersist.Open("sqlite3", "app.db", nil)
//	db.AutoMigrate(ctx, reg, "User")
//	id, err := jpersist.NewEngine(db, reg, 0).WriteObject(ctx, "User", data)
package jpersist

import (
	"github.com/shrek82/jpersist/model"
	"github.com/shrek82/jpersist/persist"
	"github.com/shrek82/jpersist/store"
	"github.com/shrek82/jpersist/value"
)

// Re-export model types and functions
type Registry = model.Registry
type RecordType = model.RecordType
type Field = model.Field
type Collection = model.Collection
type Table = model.Table

var (
	NewRegistry = model.NewRegistry
	LoadSchema  = model.LoadSchema
)

// Re-export store types and functions
type DB = store.DB
type Options = store.Options
type Store = store.Store
type Tx = store.Tx

var Open = store.Open

// Re-export engine types and functions
type Engine = persist.Engine
type Option = persist.Option
type Stats = persist.Stats
type Observer = persist.Observer

var NewEngine = persist.New

const (
	DisableStaleChildCleanup   = persist.DisableStaleChildCleanup
	DisableUnmappedKeyWarnings = persist.DisableUnmappedKeyWarnings
)

// Errors
type TypeMismatchError = value.TypeMismatchError

var (
	ErrSchema               = model.ErrSchema
	ErrRelationResolution   = model.ErrRelationResolution
	ErrTypeMismatch         = value.ErrTypeMismatch
	ErrUnsupportedValueType = value.ErrUnsupportedValueType
	ErrStore                = store.ErrStore
	ErrDuplicateKey         = store.ErrDuplicateKey
	ErrForeignKey           = store.ErrForeignKey
	ErrInvalidJSON          = persist.ErrInvalidJSON
	ErrJSONPath             = persist.ErrJSONPath
)
