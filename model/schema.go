package model

import (
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/shrek82/jpersist/value"
)

// Schema is the declarative form of a set of record types.
//
//	records:
//	  - name: User
//	    root: true
//	    table: users
//	    fields:
//	      - {name: id, type: int64, identity: true, generated: true}
//	      - {name: name, type: string}
//	      - {name: posts, one_to_many: Post}
type Schema struct {
	Records []RecordSpec `yaml:"records"`
}

type RecordSpec struct {
	Name    string      `yaml:"name"`
	Table   string      `yaml:"table"`
	Root    bool        `yaml:"root"`
	Extends []string    `yaml:"extends"`
	Fields  []FieldSpec `yaml:"fields"`
}

type FieldSpec struct {
	Name      string `yaml:"name"`
	Column    string `yaml:"column"`
	From      string `yaml:"from"`
	Type      string `yaml:"type"`
	Identity  bool   `yaml:"identity"`
	Generated bool   `yaml:"generated"`
	Nullable  bool   `yaml:"nullable"`

	Relation   string `yaml:"relation"`
	OneToMany  string `yaml:"one_to_many"`
	ManyToMany string `yaml:"many_to_many"`
	Other      string `yaml:"other"`
	Link       string `yaml:"link"`
	BackRef    string `yaml:"backref"`
	Single     string `yaml:"single"`
}

// LoadSchema decodes a YAML schema into record definitions ready for Registry.Add.
func LoadSchema(r io.Reader) ([]*RecordType, error) {
	var s Schema
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: decode schema: %v", ErrSchema, err)
	}
	return s.RecordTypes()
}

// RecordTypes converts the schema into record definitions.
func (s *Schema) RecordTypes() ([]*RecordType, error) {
	out := make([]*RecordType, 0, len(s.Records))
	for _, rs := range s.Records {
		rt := &RecordType{
			Name:      rs.Name,
			TableName: rs.Table,
			Table:     rs.Root || rs.Table != "",
			Bases:     rs.Extends,
		}
		for _, fs := range rs.Fields {
			f, err := fs.field(rs.Name)
			if err != nil {
				return nil, err
			}
			rt.Fields = append(rt.Fields, f)
		}
		out = append(out, rt)
	}
	return out, nil
}

func (fs FieldSpec) field(record string) (*Field, error) {
	f := &Field{
		Name:     fs.Name,
		From:     fs.From,
		Column:   fs.Column,
		Nullable: fs.Nullable,
	}

	targets := 0
	for _, t := range []string{fs.Relation, fs.OneToMany, fs.ManyToMany} {
		if t != "" {
			targets++
		}
	}
	if targets > 1 || (targets == 1 && fs.Identity) {
		return nil, fmt.Errorf("%w: %s.%s mixes field kinds", ErrSchema, record, fs.Name)
	}

	switch {
	case fs.Relation != "":
		f.Kind = KindRelation
		f.Target = fs.Relation
	case fs.OneToMany != "":
		f.Kind = KindCollection
		f.Collection = &Collection{
			Kind:         OneToMany,
			Target:       fs.OneToMany,
			BackRef:      fs.BackRef,
			SingleColumn: fs.Single,
		}
	case fs.ManyToMany != "":
		f.Kind = KindCollection
		f.Collection = &Collection{
			Kind:    ManyToMany,
			Target:  fs.ManyToMany,
			Other:   fs.Other,
			BackRef: fs.BackRef,
			Link:    fs.Link,
		}
	default:
		kind, err := value.ParseKind(fs.Type)
		if err != nil {
			return nil, fmt.Errorf("%w: %s.%s: %v", ErrSchema, record, fs.Name, err)
		}
		f.Kind = KindScalar
		f.Scalar = kind
		if fs.Identity {
			f.Kind = KindIdentity
			f.Generated = fs.Generated
		}
	}
	return f, nil
}
