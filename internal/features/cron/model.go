package cron_feature

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Built-in scheduled jobs
const (
	JobSLAEvaluation = "sla_evaluation"
	JobSLAStatistics = "sla_statistics"
)

// JobResult is what a job reports back for its run log
type JobResult struct {
	RecordsProcessed int
	RecordsAffected  int
	Output           string
}

type JobFunc func(ctx context.Context) (JobResult, error)

// CronJob is the stored state of a built-in job. The schedule comes from configuration;
// only Active is changed through the API.
type CronJob struct {
	Name        string     `json:"name" bson:"_id"`
	Description string     `json:"description,omitempty" bson:"description,omitempty"`
	Schedule    string     `json:"schedule" bson:"schedule"`
	Active      bool       `json:"active" bson:"active"`
	LastRun     *time.Time `json:"last_run,omitempty" bson:"last_run,omitempty"`
	NextRun     *time.Time `json:"next_run,omitempty" bson:"next_run,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at" bson:"updated_at"`
}

// CronJobLog represents a single execution of a cron job
type CronJobLog struct {
	ID               primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	CronJobName      string             `json:"cron_job_name" bson:"cron_job_name"`
	Trigger          string             `json:"trigger" bson:"trigger"` // scheduled, manual
	StartTime        time.Time          `json:"start_time" bson:"start_time"`
	EndTime          *time.Time         `json:"end_time,omitempty" bson:"end_time,omitempty"`
	Status           string             `json:"status" bson:"status"` // "success", "failed", "running"
	RecordsProcessed int                `json:"records_processed" bson:"records_processed"`
	RecordsAffected  int                `json:"records_affected" bson:"records_affected"`
	Error            string             `json:"error,omitempty" bson:"error,omitempty"`
	Output           string             `json:"output,omitempty" bson:"output,omitempty"`
	CreatedAt        time.Time          `json:"created_at" bson:"created_at"`
}
