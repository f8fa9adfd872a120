package model

type locateKey struct {
	rt  *RecordType
	key string
}

// Locate finds the field a JSON key binds to on a resolved record. Each level
// of the inheritance chain is searched by declared name and then by its "maps
// from" key before moving on to the bases. Nil means the key is unmapped.
func (r *Registry) Locate(rt *RecordType, key string) *Field {
	lk := locateKey{rt: rt, key: key}
	if v, ok := r.located.Load(lk); ok {
		return v.(*Field)
	}
	f := locate(rt, key)
	r.located.Store(lk, f)
	return f
}

func locate(rt *RecordType, key string) *Field {
	levels := rt.levels
	if levels == nil {
		levels = [][]*Field{rt.Fields}
	}
	for _, level := range levels {
		for _, f := range level {
			if f.Name == key {
				return f
			}
		}
		for _, f := range level {
			if f.From != "" && f.From == key {
				return f
			}
		}
	}
	return nil
}
