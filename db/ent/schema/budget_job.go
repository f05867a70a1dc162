package schema

import (
	"encoding/json"
	"time"

	"entgo.io/ent"
	"entgo.io/ent/dialect"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
	"github.com/google/uuid"

	"github.com/innovacioninteligente/dochevi-construc-sub000/constants"
	"github.com/innovacioninteligente/dochevi-construc-sub000/db/ent/schema/utils"
)

const BudgetJobTable = "budget_job"

// JobStatuses lists the values accepted in budget_job.status.
var JobStatuses = []string{
	string(constants.JobStatusQueued),
	string(constants.JobStatusRunning),
	string(constants.JobStatusDone),
	string(constants.JobStatusFailed),
}

// ValidateStatus is the validator attached to budget_job.status.
var ValidateStatus = utils.EnumValidator(JobStatuses...)

type BudgetJob struct{ ent.Schema }

func (BudgetJob) Annotations() []schema.Annotation {
	return []schema.Annotation{
		entsql.Annotation{Table: BudgetJobTable},
	}
}

func (BudgetJob) Fields() []ent.Field {
	return []ent.Field{
		field.UUID("id", uuid.UUID{}).Default(uuid.New).Immutable(),
		field.String("source_name"),
		field.String("mime_type").NotEmpty(),
		field.String("subscriber_key").Optional(),
		field.String("status").NotEmpty().Validate(ValidateStatus),
		field.String("path").Optional(),
		field.Int("page_count").Default(0),
		field.Int("item_count").Default(0),
		field.String("project_type_guess").Optional(),
		field.JSON("summary", json.RawMessage{}).Optional(),
		field.String("error_message").Optional().Nillable().
			SchemaType(map[string]string{dialect.Postgres: "text"}),
		field.Time("started_at").Default(time.Now),
		field.Time("finished_at").Optional().Nillable(),
	}
}

func (BudgetJob) Edges() []ent.Edge {
	return []ent.Edge{
		edge.To("items", BudgetItem.Type),
	}
}

func (BudgetJob) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("status", "started_at"),
	}
}
