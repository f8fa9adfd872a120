package model

import (
	"fmt"
)

// linkCollectionLocked ties a collection field to the child (or junction)
// fields that reference the parent and, for many-to-many, the declared target.
// ancestors holds the parent record name and all of its bases.
func (r *Registry) linkCollectionLocked(parent *RecordType, f *Field, ancestors map[string]bool) error {
	c := f.Collection
	child, ok := r.defs[c.Target]
	if !ok {
		return fmt.Errorf("%w: collection %s.%s targets unknown record %s", ErrSchema, parent.Name, f.Name, c.Target)
	}
	if !child.Table {
		return fmt.Errorf("%w: collection %s.%s targets %s, which has no table marker", ErrSchema, parent.Name, f.Name, c.Target)
	}

	chain, err := r.chainLocked(child, map[string]bool{})
	if err != nil {
		return err
	}
	var relations []*Field
	for _, level := range chain {
		for _, cf := range level.Fields {
			if cf.Kind == KindRelation {
				relations = append(relations, cf)
			}
		}
	}

	backRef, err := findBackRef(parent.Name, f, relations, ancestors)
	if err != nil {
		return err
	}
	c.backRef = backRef.clone()

	if c.Kind != ManyToMany {
		if c.SingleColumn == "" {
			return nil
		}
		for _, level := range chain {
			for _, cf := range level.Fields {
				if cf.Kind == KindScalar && cf.Column == c.SingleColumn {
					c.single = cf.clone()
					return nil
				}
			}
		}
		return fmt.Errorf("%w: %s.%s stores elements in %s.%s, which is not a scalar column",
			ErrSchema, parent.Name, f.Name, c.Target, c.SingleColumn)
	}
	if _, ok := r.defs[c.Other]; !ok {
		return fmt.Errorf("%w: many-to-many %s.%s targets unknown record %s", ErrSchema, parent.Name, f.Name, c.Other)
	}
	link, err := findLink(parent.Name, f, relations, backRef)
	if err != nil {
		return err
	}
	c.link = link.clone()
	return nil
}

func findBackRef(parent string, f *Field, relations []*Field, ancestors map[string]bool) (*Field, error) {
	c := f.Collection
	if c.BackRef != "" {
		for _, rf := range relations {
			if rf.Name == c.BackRef {
				if !ancestors[rf.Target] {
					return nil, fmt.Errorf("%w: %s.%s back-reference %s.%s targets %s, not %s",
						ErrRelationResolution, parent, f.Name, c.Target, rf.Name, rf.Target, parent)
				}
				return rf, nil
			}
		}
		return nil, fmt.Errorf("%w: %s.%s back-reference %s.%s does not exist",
			ErrRelationResolution, parent, f.Name, c.Target, c.BackRef)
	}

	for _, rf := range relations {
		if ancestors[rf.Target] {
			return rf, nil
		}
	}
	return nil, fmt.Errorf("%w: %s has no relation back to %s for collection %s",
		ErrRelationResolution, c.Target, parent, f.Name)
}

func findLink(parent string, f *Field, relations []*Field, backRef *Field) (*Field, error) {
	c := f.Collection
	if c.Link != "" {
		for _, rf := range relations {
			if rf.Name == c.Link {
				if rf.Target != c.Other {
					return nil, fmt.Errorf("%w: %s.%s link %s.%s targets %s, not %s",
						ErrSchema, parent, f.Name, c.Target, rf.Name, rf.Target, c.Other)
				}
				return rf, nil
			}
		}
		return nil, fmt.Errorf("%w: %s.%s link %s.%s does not exist", ErrSchema, parent, f.Name, c.Target, c.Link)
	}

	var candidates []*Field
	for _, rf := range relations {
		if rf != backRef && rf.Target == c.Other {
			candidates = append(candidates, rf)
		}
	}
	switch len(candidates) {
	case 1:
		return candidates[0], nil
	case 0:
		return nil, fmt.Errorf("%w: junction %s has no relation to %s for %s.%s",
			ErrRelationResolution, c.Target, c.Other, parent, f.Name)
	default:
		return nil, fmt.Errorf("%w: junction %s has %d relations to %s; designate one for %s.%s",
			ErrSchema, c.Target, len(candidates), c.Other, parent, f.Name)
	}
}
