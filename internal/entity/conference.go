package entity

type Conference struct {
	ID              int    `json:"id" db:"id"`
	City            string `json:"city" db:"city" validate:"required,max=255"`
	Year            string `json:"year" db:"year" validate:"required,len=4,numeric"`
	IsInternational bool   `json:"is_international" db:"is_international"`
	CommentIDs      []int  `json:"comment_ids" db:"-"`
}
