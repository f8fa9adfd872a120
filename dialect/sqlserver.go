package dialect

import (
	"errors"
	"fmt"

	mssql "github.com/microsoft/go-mssqldb"

	"github.com/shrek82/jpersist/value"
)

type sqlserver struct{}

func (d *sqlserver) Name() string { return "sqlserver" }

func (d *sqlserver) DataTypeOf(kind value.Kind) string {
	switch kind {
	case value.Bool:
		return "bit"
	case value.Int32:
		return "int"
	case value.Int64:
		return "bigint"
	case value.Float32:
		return "real"
	case value.Float64:
		return "float"
	case value.String:
		return "nvarchar(255)"
	case value.Any:
		return "sql_variant"
	}
	panic(fmt.Sprintf("invalid sql type for kind %s", kind))
}

func (d *sqlserver) Quote(name string) string {
	return fmt.Sprintf("[%s]", name)
}

func (d *sqlserver) Placeholder(index int) string {
	return fmt.Sprintf("@p%d", index)
}

func (d *sqlserver) InsertSQL(table string, columns []string, returning string) (string, bool) {
	output := ""
	if returning != "" {
		output = " OUTPUT INSERTED." + d.Quote(returning)
	}
	if len(columns) == 0 {
		return fmt.Sprintf("INSERT INTO %s%s DEFAULT VALUES", d.Quote(table), output), returning != ""
	}
	cols, placeholders := insertParts(d, columns)
	return fmt.Sprintf("INSERT INTO %s (%s)%s VALUES (%s)", d.Quote(table), cols, output, placeholders), returning != ""
}

func (d *sqlserver) CreateTableSQL(table string, columns []Column) string {
	return createTable(d, table, columns, func(col Column) string {
		def := fmt.Sprintf("%s %s PRIMARY KEY", d.Quote(col.Name), d.DataTypeOf(col.Kind))
		if col.AutoIncrement {
			def += " IDENTITY(1,1)"
		}
		return def
	})
}

func (d *sqlserver) HasTableSQL(table string) (string, []any) {
	return "SELECT count(*) FROM INFORMATION_SCHEMA.TABLES WHERE TABLE_NAME = @p1", []any{table}
}

func (d *sqlserver) DropTableSQL(table string) string {
	return fmt.Sprintf("DROP TABLE IF EXISTS %s", d.Quote(table))
}

func (d *sqlserver) Classify(err error) Constraint {
	var msErr mssql.Error
	if !errors.As(err, &msErr) {
		return ConstraintNone
	}
	switch msErr.Number {
	case 2627, 2601:
		return ConstraintUnique
	case 547:
		return ConstraintForeignKey
	}
	return ConstraintNone
}
