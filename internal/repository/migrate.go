package repository

import (
	"context"
	"fmt"
	"strings"

	"entgo.io/ent"
	"entgo.io/ent/dialect"
	"entgo.io/ent/schema/field"

	"github.com/innovacioninteligente/dochevi-construc-sub000/db/ent/schema"
)

type tableSchema interface {
	Fields() []ent.Field
	Edges() []ent.Edge
	Indexes() []ent.Index
}

// tables in creation order; edge types resolve through typeTables.
var (
	tables = []struct {
		name string
		def  tableSchema
	}{
		{schema.BudgetJobTable, schema.BudgetJob{}},
		{schema.BudgetItemTable, schema.BudgetItem{}},
	}
	typeTables = map[string]string{
		"BudgetJob":  schema.BudgetJobTable,
		"BudgetItem": schema.BudgetItemTable,
	}
)

// Migrate creates the tables and indexes declared by the ent schema when
// they do not exist yet.
func (d *DB) Migrate(ctx context.Context) error {
	for _, t := range tables {
		stmts, err := tableDDL(d.Dialect(), t.name, t.def)
		if err != nil {
			return err
		}
		for _, stmt := range stmts {
			if err := d.Driver.Exec(ctx, stmt, []any{}, nil); err != nil {
				return fmt.Errorf("migrate %s: %w", t.name, err)
			}
		}
	}
	d.log.Info("database.migrate.ok", "tables", len(tables))
	return nil
}

func tableDDL(dialectName, table string, def tableSchema) ([]string, error) {
	refs := map[string]string{}
	for _, e := range def.Edges() {
		ed := e.Descriptor()
		if ed.Field != "" && ed.Inverse {
			target, ok := typeTables[ed.Type]
			if !ok {
				return nil, fmt.Errorf("table %s: unknown edge type %s", table, ed.Type)
			}
			refs[ed.Field] = target
		}
	}

	var cols []string
	for _, f := range def.Fields() {
		fd := f.Descriptor()
		if fd.Err != nil {
			return nil, fmt.Errorf("table %s field %s: %w", table, fd.Name, fd.Err)
		}
		col := fd.Name + " " + columnType(dialectName, fd)
		switch {
		case fd.Name == "id":
			col += " PRIMARY KEY"
		case !fd.Optional:
			col += " NOT NULL"
		}
		if target, ok := refs[fd.Name]; ok {
			col += " REFERENCES " + target + "(id) ON DELETE CASCADE"
		}
		cols = append(cols, col)
	}
	stmts := []string{fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", table, strings.Join(cols, ", "))}

	for _, ix := range def.Indexes() {
		id := ix.Descriptor()
		unique := ""
		if id.Unique {
			unique = "UNIQUE "
		}
		stmts = append(stmts, fmt.Sprintf("CREATE %sINDEX IF NOT EXISTS %s_%s ON %s (%s)",
			unique, table, strings.Join(id.Fields, "_"), table, strings.Join(id.Fields, ", ")))
	}
	return stmts, nil
}

func columnType(dialectName string, fd *field.Descriptor) string {
	if st, ok := fd.SchemaType[dialectName]; ok {
		return st
	}
	pg := dialectName == dialect.Postgres
	switch t := fd.Info.Type; {
	case t == field.TypeUUID:
		if pg {
			return "uuid"
		}
		return "TEXT"
	case t == field.TypeBool:
		return "BOOLEAN"
	case t == field.TypeTime:
		if pg {
			return "timestamptz"
		}
		return "DATETIME"
	case t == field.TypeJSON:
		if pg {
			return "jsonb"
		}
		return "TEXT"
	case t.Integer():
		if pg {
			return "bigint"
		}
		return "INTEGER"
	case t.Float():
		if pg {
			return "double precision"
		}
		return "REAL"
	}
	if pg {
		return "varchar"
	}
	return "TEXT"
}
