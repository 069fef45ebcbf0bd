package entity

import "time"

type SpamScore int

const (
	SpamScoreHam SpamScore = iota
	SpamScoreAmbiguous
	SpamScoreBlatant
)

func (s SpamScore) String() string {
	switch s {
	case SpamScoreHam:
		return "ham"
	case SpamScoreAmbiguous:
		return "ambiguous"
	case SpamScoreBlatant:
		return "blatant"
	}
	return "unknown"
}

type JobType string

const (
	// JobModerate двигает комментарий по цепочке модерации
	JobModerate JobType = "moderate"
	// JobReview применяет решение администратора к помеченному комментарию
	JobReview JobType = "review"
)

type ReviewDecision string

const (
	ReviewReject ReviewDecision = "reject"
)

// Ключи контекста отправки, которые используются при проверке на спам
const (
	ContextIP        = "ip"
	ContextUserAgent = "user_agent"
	ContextReferrer  = "referrer"
	ContextPermalink = "permalink"
)

type ModerationJob struct {
	JobID      string            `msgpack:"job_id"`
	Type       JobType           `msgpack:"type"`
	CommentID  int               `msgpack:"comment_id"`
	Context    map[string]string `msgpack:"context"`
	Decision   ReviewDecision    `msgpack:"decision,omitempty"`
	Attempt    int               `msgpack:"attempt"`
	EnqueuedAt time.Time         `msgpack:"enqueued_at"`
	LastError  string            `msgpack:"last_error,omitempty"`
}

// Delivery - полученная из очереди задача вместе с данными, нужными для ack/nack
type Delivery struct {
	Job    *ModerationJob
	Handle any
}
