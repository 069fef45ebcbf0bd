package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var JobsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "moderation_jobs_processed_total",
	Help: "Number of processed moderation jobs, by job type and outcome",
}, []string{"type", "outcome"})

var TransitionsApplied = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "moderation_transitions_applied_total",
	Help: "Number of persisted workflow transitions, by transition",
}, []string{"transition"})

var JobsRequeued = promauto.NewCounter(prometheus.CounterOpts{
	Name: "moderation_jobs_requeued_total",
	Help: "Number of failed moderation jobs put back for redelivery",
})

var JobsDeadLettered = promauto.NewCounter(prometheus.CounterOpts{
	Name: "moderation_jobs_dead_lettered_total",
	Help: "Number of moderation jobs moved to the dead letter topic",
})

var SpamCheckDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name: "moderation_spam_check_duration_sec",
	Help: "Duration of reputation service calls",
})

var SpamCheckDegraded = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "moderation_spam_check_degraded_total",
	Help: "Number of spam checks that fell back to the ambiguous score, by reason",
}, []string{"reason"})

var SpamScores = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "moderation_spam_scores_total",
	Help: "Number of spam verdicts, by score",
}, []string{"score"})

var PhotoOptimizations = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "moderation_photo_optimizations_total",
	Help: "Number of photo optimization runs, by result",
}, []string{"result"})

var Notifications = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "moderation_notifications_total",
	Help: "Number of admin notifications, by channel and result",
}, []string{"channel", "result"})

var Redrives = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "moderation_redrives_total",
	Help: "Number of re-driven comment job chains, by source",
}, []string{"source"})
