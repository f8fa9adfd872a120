package model

import (
	"strings"
)

// Tag represents a parsed jpersist struct tag.
type Tag struct {
	Table      string
	Column     string
	From       string
	FK         string
	BackRef    string
	Link       string
	Single     string
	ManyToMany string
	PrimaryKey bool
	AutoInc    bool
	Nullable   bool
	Skip       bool
}

// ParseTag parses the "jpersist" tag string. Options may be separated by
// spaces, semicolons or commas; values follow a colon:
//
//	`jpersist:"pk auto column:user_id"`
//	`jpersist:"many2many:Group;link:group"`
func ParseTag(tagStr string) *Tag {
	tag := &Tag{}
	tagStr = strings.TrimSpace(tagStr)
	if tagStr == "" {
		return tag
	}
	if tagStr == "-" {
		tag.Skip = true
		return tag
	}

	parts := strings.FieldsFunc(tagStr, func(r rune) bool {
		return r == ' ' || r == ';' || r == ',' || r == '\t'
	})

	for _, part := range parts {
		kv := strings.SplitN(part, ":", 2)
		key := strings.ToLower(strings.TrimSpace(kv[0]))
		var val string
		if len(kv) > 1 {
			val = strings.TrimSpace(kv[1])
		}

		switch key {
		case "table":
			tag.Table = val
		case "column":
			tag.Column = val
		case "from", "map_from", "mapfrom":
			tag.From = val
		case "pk", "id":
			tag.PrimaryKey = true
		case "auto", "generated":
			tag.AutoInc = true
		case "nullable", "null":
			tag.Nullable = true
		case "fk", "foreignkey":
			tag.FK = val
		case "backref", "back_ref":
			tag.BackRef = val
		case "link":
			tag.Link = val
		case "single", "single_target":
			tag.Single = val
		case "many2many", "many_to_many":
			tag.ManyToMany = val
		case "-":
			tag.Skip = true
		}
	}
	return tag
}
