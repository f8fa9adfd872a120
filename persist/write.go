package persist

import (
	"context"
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/shrek82/jpersist/logger"
	"github.com/shrek82/jpersist/model"
	"github.com/shrek82/jpersist/store"
	"github.com/shrek82/jpersist/value"
)

// writer carries the state of one write call. It is confined to the calling
// goroutine and to a single transaction.
type writer struct {
	ctx      context.Context
	tx       store.Tx
	registry *model.Registry
	options  Option
	logger   logger.Logger
	stats    *Stats
}

// member is a JSON key matched to a field.
type member struct {
	field *model.Field
	key   string
	val   gjson.Result
}

// writeObject persists obj as a row of rt and returns the row's identity.
// Relations are written before the row is updated, collections after it.
func (w *writer) writeObject(rt *model.RecordType, obj gjson.Result) (any, error) {
	w.stats.Objects++
	idField := rt.Identity()

	var (
		identity    *member
		columns     []member
		collections []member
		err         error
	)
	obj.ForEach(func(k, v gjson.Result) bool {
		key := k.String()
		f := w.registry.Locate(rt, key)
		switch {
		case f == nil:
			if !w.options.Has(DisableUnmappedKeyWarnings) {
				w.logger.Warn("%s: no field for key %q, skipped", rt.Name, key)
			}
		case f.IsIdentity():
			if identity != nil {
				err = fmt.Errorf("%w: %s: keys %q and %q both map to the identity %s",
					model.ErrRelationResolution, rt.Name, identity.key, key, f.Name)
				return false
			}
			identity = &member{field: f, key: key, val: v}
		case f.Kind == model.KindCollection:
			collections = append(collections, member{field: f, key: key, val: v})
		default:
			columns = append(columns, member{field: f, key: key, val: v})
		}
		return true
	})
	if err != nil {
		return nil, err
	}

	var id any
	if identity != nil && identity.val.Type != gjson.Null {
		if id, err = value.Coerce(identity.key, identity.val, idField.Scalar); err != nil {
			return nil, err
		}
		if err = w.ensureRow(rt, id); err != nil {
			return nil, err
		}
	}

	row := make(map[string]any, len(columns))
	for _, m := range columns {
		v, err := w.columnValue(m)
		if err != nil {
			return nil, err
		}
		if err := value.MustCopy(v, m.field.Column, row); err != nil {
			return nil, err
		}
	}

	if id == nil {
		if id, err = w.insertGenerated(rt, idField, nil); err != nil {
			return nil, err
		}
	}
	if len(row) > 0 {
		n, err := w.tx.Update(w.ctx, rt.TableName, row, store.Eq(idField.Column, id))
		if err != nil {
			return nil, err
		}
		w.stats.Updated += n
	}

	for _, m := range collections {
		if err := w.writeCollection(rt, id, m); err != nil {
			return nil, err
		}
	}

	w.logger.Info("imported %s (%s=%v)", rt.Name, idField.Column, id)
	return id, nil
}

// ensureRow inserts a row holding only id unless one exists already.
func (w *writer) ensureRow(rt *model.RecordType, id any) error {
	col := rt.Identity().Column
	found, err := w.tx.QueryIdentity(w.ctx, rt.TableName, col, id)
	if err != nil || found {
		return err
	}
	if _, err := w.tx.Insert(w.ctx, rt.TableName, map[string]any{col: id}, ""); err != nil {
		return err
	}
	w.stats.Inserted++
	return nil
}

// insertGenerated inserts row into rt's table and returns the identity the
// store assigned to it. String identities are never generated.
func (w *writer) insertGenerated(rt *model.RecordType, idField *model.Field, row map[string]any) (any, error) {
	if idField.Scalar == value.String {
		return nil, &value.TypeMismatchError{Key: idField.Name, Want: idField.Scalar, Got: "missing"}
	}
	if row == nil {
		row = map[string]any{}
	}
	key, err := w.tx.Insert(w.ctx, rt.TableName, row, idField.Column)
	if err != nil {
		return nil, err
	}
	w.stats.Inserted++
	return value.Normalize(key, idField.Scalar)
}

// columnValue converts the JSON value of a scalar or relation member.
func (w *writer) columnValue(m member) (any, error) {
	if m.val.Type == gjson.Null {
		return nil, nil
	}
	if m.field.Kind != model.KindRelation {
		return value.Coerce(m.key, m.val, m.field.Scalar)
	}

	target, err := w.registry.Resolve(m.field.Target)
	if err != nil {
		return nil, err
	}
	switch {
	case m.val.IsObject():
		return w.writeObject(target, m.val)
	case m.val.IsArray():
		return nil, &value.TypeMismatchError{Key: m.key, Want: target.Identity().Scalar, Got: "array", Raw: m.val.Raw}
	}
	// a bare scalar references an existing target row by identity
	return value.Coerce(m.key, m.val, target.Identity().Scalar)
}

func (w *writer) writeCollection(parent *model.RecordType, parentID any, m member) error {
	switch {
	case m.val.Type == gjson.Null:
		w.logger.Warn("%s.%s is null, collection skipped", parent.Name, m.field.Name)
		return nil
	case !m.val.IsArray():
		return &value.TypeMismatchError{Key: m.key, Want: value.Invalid, Got: value.TypeName(m.val), Raw: m.val.Raw}
	}

	c := m.field.Collection
	if c.Kind == model.ManyToMany {
		return w.writeManyToMany(c, parentID, m)
	}
	return w.writeOneToMany(parent, c, parentID, m)
}

// writeOneToMany writes the elements as children of parentID, points their
// back-reference at the parent and deletes the parent's other children.
func (w *writer) writeOneToMany(parent *model.RecordType, c *model.Collection, parentID any, m member) error {
	child, err := w.registry.Resolve(c.Target)
	if err != nil {
		return err
	}
	childID := child.Identity()
	backRef := c.BackRefField()
	single := c.SingleField()

	ids := []any{}
	var elemErr error
	m.val.ForEach(func(_, elem gjson.Result) bool {
		var id any
		switch {
		case single == nil && !elem.IsObject():
			elemErr = &value.TypeMismatchError{Key: m.key, Want: childID.Scalar, Got: value.TypeName(elem), Raw: elem.Raw}
		case single == nil:
			id, elemErr = w.writeObject(child, elem)
		case elem.IsObject() || elem.IsArray():
			elemErr = &value.TypeMismatchError{Key: m.key, Want: single.Scalar, Got: value.TypeName(elem), Raw: elem.Raw}
		default:
			id, elemErr = w.writeSingle(child, single, backRef, parentID, m.key, elem)
		}
		if elemErr != nil {
			return false
		}
		ids = append(ids, id)
		return true
	})
	if elemErr != nil {
		return elemErr
	}

	if len(ids) > 0 {
		n, err := w.tx.Update(w.ctx, child.TableName, map[string]any{backRef.Column: parentID}, store.In(childID.Column, ids...))
		if err != nil {
			return err
		}
		w.stats.Updated += n
	}

	if w.options.Has(DisableStaleChildCleanup) {
		return nil
	}
	n, err := w.tx.Delete(w.ctx, child.TableName,
		store.Eq(backRef.Column, parentID),
		store.NotIn(childID.Column, ids...),
	)
	if err != nil {
		return err
	}
	if n > 0 {
		w.logger.Info("removed %d stale %s of %s (%v)", n, child.Name, parent.Name, parentID)
	}
	w.stats.Deleted += n
	return nil
}

// writeSingle stores a bare scalar element as a new child row.
func (w *writer) writeSingle(child *model.RecordType, single, backRef *model.Field, parentID any, key string, elem gjson.Result) (any, error) {
	var v any
	if elem.Type != gjson.Null {
		var err error
		if v, err = value.Coerce(key, elem, single.Scalar); err != nil {
			return nil, err
		}
	}
	row := map[string]any{backRef.Column: parentID}
	if err := value.MustCopy(v, single.Column, row); err != nil {
		return nil, err
	}
	w.stats.Objects++
	return w.insertGenerated(child, child.Identity(), row)
}

// writeManyToMany writes the elements as the collection's target records and
// replaces the parent's junction rows with one row per element.
func (w *writer) writeManyToMany(c *model.Collection, parentID any, m member) error {
	junction, err := w.registry.Resolve(c.Target)
	if err != nil {
		return err
	}
	other, err := w.registry.Resolve(c.Other)
	if err != nil {
		return err
	}

	ids := []any{}
	var elemErr error
	m.val.ForEach(func(_, elem gjson.Result) bool {
		if !elem.IsObject() {
			elemErr = &value.TypeMismatchError{Key: m.key, Want: other.Identity().Scalar, Got: value.TypeName(elem), Raw: elem.Raw}
			return false
		}
		var id any
		if id, elemErr = w.writeObject(other, elem); elemErr != nil {
			return false
		}
		ids = append(ids, id)
		return true
	})
	if elemErr != nil {
		return elemErr
	}

	backRef, link := c.BackRefField(), c.LinkField()
	n, err := w.tx.Delete(w.ctx, junction.TableName, store.Eq(backRef.Column, parentID))
	if err != nil {
		return err
	}
	w.stats.Deleted += n

	returning := ""
	if jid := junction.Identity(); jid.Generated {
		returning = jid.Column
	}
	for _, id := range ids {
		row := map[string]any{backRef.Column: parentID, link.Column: id}
		if _, err := w.tx.Insert(w.ctx, junction.TableName, row, returning); err != nil {
			return err
		}
		w.stats.Inserted++
	}
	return nil
}
