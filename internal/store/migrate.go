package store

import (
	"context"

	entsql "entgo.io/ent/dialect/sql"
	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"
)

const (
	tableSchedules = "review_schedules"
	tableReviewLog = "review_log"
	tableItemStats = "item_stats"
	tableResets    = "schedule_resets"
	tableQueues    = "queue_snapshots"
)

var (
	schedulesColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt, Increment: true},
		{Name: "learner_id", Type: field.TypeString},
		{Name: "item_id", Type: field.TypeString},
		{Name: "next_review_date", Type: field.TypeString},
		{Name: "current_interval", Type: field.TypeInt},
		{Name: "ease_factor", Type: field.TypeFloat64},
		{Name: "consecutive_correct", Type: field.TypeInt},
		{Name: "consecutive_failures", Type: field.TypeInt},
		{Name: "total_reviews", Type: field.TypeInt},
		{Name: "total_correct", Type: field.TypeInt},
		{Name: "total_time_spent_ms", Type: field.TypeInt64},
		{Name: "difficulty_score", Type: field.TypeFloat64},
		{Name: "is_leech", Type: field.TypeBool},
		{Name: "leech_count", Type: field.TypeInt},
		{Name: "mastery_level", Type: field.TypeString},
		{Name: "mastered_at", Type: field.TypeString, Nullable: true},
		{Name: "recent_performance", Type: field.TypeJSON},
		{Name: "last_reviewed_at", Type: field.TypeString, Nullable: true},
		{Name: "version", Type: field.TypeInt64},
		{Name: "created_at", Type: field.TypeString},
		{Name: "updated_at", Type: field.TypeString},
	}
	schedulesTable = &schema.Table{
		Name:       tableSchedules,
		Columns:    schedulesColumns,
		PrimaryKey: []*schema.Column{schedulesColumns[0]},
		Indexes: []*schema.Index{
			{Name: "reviewschedule_learner_id_item_id", Unique: true, Columns: []*schema.Column{schedulesColumns[1], schedulesColumns[2]}},
			{Name: "reviewschedule_learner_id_next_review_date", Columns: []*schema.Column{schedulesColumns[1], schedulesColumns[3]}},
		},
	}

	reviewLogColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt, Increment: true},
		{Name: "idempotency_key", Type: field.TypeString, Unique: true},
		{Name: "sequence", Type: field.TypeInt64, Unique: true},
		{Name: "learner_id", Type: field.TypeString},
		{Name: "item_id", Type: field.TypeString},
		{Name: "is_correct", Type: field.TypeBool},
		{Name: "response_time_ms", Type: field.TypeInt64},
		{Name: "changed_answer", Type: field.TypeBool},
		{Name: "performance", Type: field.TypeInt},
		{Name: "difficulty_score", Type: field.TypeFloat64},
		{Name: "interval", Type: field.TypeInt},
		{Name: "reviewed_at", Type: field.TypeString},
	}
	reviewLogTable = &schema.Table{
		Name:       tableReviewLog,
		Columns:    reviewLogColumns,
		PrimaryKey: []*schema.Column{reviewLogColumns[0]},
		Indexes: []*schema.Index{
			{Name: "reviewlog_learner_id_item_id", Columns: []*schema.Column{reviewLogColumns[3], reviewLogColumns[4]}},
		},
	}

	itemStatsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt, Increment: true},
		{Name: "item_id", Type: field.TypeString, Unique: true},
		{Name: "total_reviews", Type: field.TypeInt},
		{Name: "total_correct", Type: field.TypeInt},
		{Name: "global_error_rate", Type: field.TypeFloat64},
		{Name: "average_ease_factor", Type: field.TypeFloat64},
		{Name: "average_response_time_ms", Type: field.TypeFloat64},
		{Name: "updated_at", Type: field.TypeString},
	}
	itemStatsTable = &schema.Table{
		Name:       tableItemStats,
		Columns:    itemStatsColumns,
		PrimaryKey: []*schema.Column{itemStatsColumns[0]},
	}

	resetsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt, Increment: true},
		{Name: "reset_id", Type: field.TypeString, Unique: true},
		{Name: "learner_id", Type: field.TypeString},
		{Name: "item_id", Type: field.TypeString},
		{Name: "reason", Type: field.TypeString},
		{Name: "prior_total_reviews", Type: field.TypeInt},
		{Name: "prior_total_correct", Type: field.TypeInt},
		{Name: "prior_leech_count", Type: field.TypeInt},
		{Name: "prior_mastery_level", Type: field.TypeString},
		{Name: "prior_ease_factor", Type: field.TypeFloat64},
		{Name: "prior_interval", Type: field.TypeInt},
		{Name: "reset_at", Type: field.TypeString},
	}
	resetsTable = &schema.Table{
		Name:       tableResets,
		Columns:    resetsColumns,
		PrimaryKey: []*schema.Column{resetsColumns[0]},
		Indexes: []*schema.Index{
			{Name: "schedulereset_learner_id_item_id", Columns: []*schema.Column{resetsColumns[2], resetsColumns[3]}},
		},
	}

	queuesColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt, Increment: true},
		{Name: "snapshot_id", Type: field.TypeString, Unique: true},
		{Name: "learner_id", Type: field.TypeString},
		{Name: "generated_at", Type: field.TypeString},
		{Name: "partial", Type: field.TypeBool},
		{Name: "entries", Type: field.TypeJSON},
	}
	queuesTable = &schema.Table{
		Name:       tableQueues,
		Columns:    queuesColumns,
		PrimaryKey: []*schema.Column{queuesColumns[0]},
		Indexes: []*schema.Index{
			{Name: "queuesnapshot_learner_id", Columns: []*schema.Column{queuesColumns[2]}},
		},
	}

	tables = []*schema.Table{
		schedulesTable,
		reviewLogTable,
		itemStatsTable,
		resetsTable,
		queuesTable,
	}
)

// migrate creates or upgrades every table the store owns.
func migrate(ctx context.Context, drv *entsql.Driver) error {
	m, err := schema.NewMigrate(drv)
	if err != nil {
		return err
	}
	return m.Create(ctx, tables...)
}
