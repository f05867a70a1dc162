package schema

import (
	"encoding/json"

	"entgo.io/ent"
	"entgo.io/ent/dialect"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
	"github.com/google/uuid"
)

const BudgetItemTable = "budget_item"

type BudgetItem struct{ ent.Schema }

func (BudgetItem) Annotations() []schema.Annotation {
	return []schema.Annotation{
		entsql.Annotation{Table: BudgetItemTable},
	}
}

func (BudgetItem) Fields() []ent.Field {
	return []ent.Field{
		field.UUID("id", uuid.UUID{}).Default(uuid.New).Immutable(),
		field.UUID("job_id", uuid.UUID{}),
		field.Int("ord"),
		field.String("code").Optional(),
		field.String("description").
			SchemaType(map[string]string{dialect.Postgres: "text"}),
		field.String("unit").Optional(),
		field.Float("quantity"),
		field.Int("page").Default(0),
		field.String("chapter").Optional(),
		field.String("section").Optional(),
		field.Float("unit_price"),
		field.Float("total_price"),
		field.String("matched_code").Optional(),
		field.Int("match_confidence").Default(0),
		field.Bool("is_estimate").Default(false),
		field.String("match_kind"),
		field.JSON("matched_entry", json.RawMessage{}).Optional(),
		field.JSON("candidates", json.RawMessage{}).Optional(),
	}
}

func (BudgetItem) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("job", BudgetJob.Type).
			Ref("items").
			Field("job_id").
			Unique().
			Required(),
	}
}

func (BudgetItem) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("job_id", "ord").Unique(),
	}
}
