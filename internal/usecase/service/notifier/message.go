package notifier

import (
	"fmt"
	"guestbook-backend/internal/entity"
	"strings"
)

const Subject = "New comment posted"

// renderComment собирает текст уведомления, общий для всех каналов
func renderComment(comment *entity.Comment) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Author: %s\n", comment.Author)
	fmt.Fprintf(&b, "Email: %s\n", comment.Email)
	fmt.Fprintf(&b, "Conference: %d\n", comment.ConferenceID)
	fmt.Fprintf(&b, "Comment: #%d, %s\n", comment.ID, comment.State)
	if comment.HasPhoto() {
		fmt.Fprintf(&b, "Photo: %s\n", *comment.PhotoFilename)
	}
	if comment.Flagged {
		b.WriteString("Flagged as possible spam, needs review.\n")
	}
	b.WriteString("\n")
	b.WriteString(comment.Text)
	b.WriteString("\n")
	return b.String()
}
