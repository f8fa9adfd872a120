package dialect

import (
	"fmt"
	"strings"
	"sync"

	"github.com/shrek82/jpersist/value"
)

// Dialect represents the interface for database-specific SQL generation and type mapping.
// Each database (MySQL, SQLite, etc.) must implement this interface to be supported.
type Dialect interface {
	// Name returns the dialect name used in logs
	Name() string
	// DataTypeOf returns the database-specific column type for a value kind
	DataTypeOf(kind value.Kind) string
	// Quote wraps a name (table or column) in database-specific quotes
	Quote(name string) string
	// Placeholder returns the bind parameter for the 1-based argument index
	Placeholder(index int) string
	// InsertSQL generates the INSERT statement for the given table and columns.
	// When returning names a generated key column, scan reports whether the key
	// comes back as a result row rather than through LastInsertId.
	InsertSQL(table string, columns []string, returning string) (query string, scan bool)
	// CreateTableSQL generates the CREATE TABLE statement for the given columns
	CreateTableSQL(table string, columns []Column) string
	// HasTableSQL generates the SQL to check if a table exists
	HasTableSQL(table string) (string, []any)
	// DropTableSQL generates the DROP TABLE IF EXISTS statement
	DropTableSQL(table string) string
	// Classify maps a driver error onto a constraint violation kind
	Classify(err error) Constraint
}

// Column describes one column of a generated table.
type Column struct {
	Name          string
	Kind          value.Kind
	PrimaryKey    bool
	AutoIncrement bool
	// Nullable columns accept NULL. The others are NOT NULL and default to
	// the zero value of their kind.
	Nullable bool
}

// Constraint is the kind of integrity violation behind a driver error.
type Constraint int

const (
	ConstraintNone Constraint = iota
	ConstraintUnique
	ConstraintForeignKey
)

func (c Constraint) String() string {
	switch c {
	case ConstraintUnique:
		return "unique"
	case ConstraintForeignKey:
		return "foreign_key"
	}
	return "none"
}

var (
	mu       sync.RWMutex
	dialects = make(map[string]Dialect)
)

// Register registers a new dialect for a given driver name
func Register(name string, d Dialect) {
	mu.Lock()
	defer mu.Unlock()
	dialects[name] = d
}

// Get retrieves a registered dialect by driver name
func Get(name string) (Dialect, bool) {
	mu.RLock()
	defer mu.RUnlock()
	d, ok := dialects[name]
	return d, ok
}

// Drivers lists the registered driver names.
func Drivers() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(dialects))
	for name := range dialects {
		names = append(names, name)
	}
	return names
}

func init() {
	Register("sqlite3", &sqlite3{})
	Register("sqlite", &sqlite{})
	Register("mysql", &mysql{})
	Register("postgres", &postgres{})
	Register("pgx", &postgres{})
	Register("sqlserver", &sqlserver{})
}

// insertParts renders the quoted column list and bind parameters of an INSERT.
func insertParts(d Dialect, columns []string) (string, string) {
	quoted := make([]string, len(columns))
	placeholders := make([]string, len(columns))
	for i, col := range columns {
		quoted[i] = d.Quote(col)
		placeholders[i] = d.Placeholder(i + 1)
	}
	return strings.Join(quoted, ", "), strings.Join(placeholders, ", ")
}

// createTable renders a CREATE TABLE statement; pk renders the primary key column.
func createTable(d Dialect, table string, columns []Column, pk func(Column) string) string {
	defs := make([]string, 0, len(columns))
	for _, col := range columns {
		if col.PrimaryKey {
			defs = append(defs, pk(col))
			continue
		}
		def := fmt.Sprintf("%s %s", d.Quote(col.Name), d.DataTypeOf(col.Kind))
		if !col.Nullable && col.Kind != value.Any {
			def += " NOT NULL DEFAULT " + zeroDefault(d, col.Kind)
		}
		defs = append(defs, def)
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", d.Quote(table), strings.Join(defs, ", "))
}

func zeroDefault(d Dialect, kind value.Kind) string {
	switch kind {
	case value.String:
		return "''"
	case value.Bool:
		if d.Name() == "sqlserver" {
			return "0"
		}
		return "FALSE"
	}
	return "0"
}
