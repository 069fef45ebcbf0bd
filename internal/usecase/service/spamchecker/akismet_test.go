package spamchecker

import (
	"context"
	"guestbook-backend/internal/entity"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newComment() *entity.Comment {
	return &entity.Comment{
		ID:        7,
		Author:    "Fabien",
		Email:     "me@example.com",
		Text:      "This was a great conference.",
		CreatedAt: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func newTestAkismet(t *testing.T, handler http.HandlerFunc) *Akismet {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewAkismet(AkismetConfig{Key: "secret", Endpoint: srv.URL, SiteURL: "https://guestbook.example.com"}).(*Akismet)
}

func TestScoreSendsSubmissionContext(t *testing.T) {
	var got map[string]string
	a := newTestAkismet(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		got = map[string]string{}
		for k := range r.PostForm {
			got[k] = r.PostForm.Get(k)
		}
		_, _ = w.Write([]byte("false"))
	})

	score := a.Score(context.Background(), newComment(), map[string]string{
		entity.ContextIP:        "127.0.0.1",
		entity.ContextUserAgent: "Mozilla",
		entity.ContextReferrer:  "https://example.com/",
		entity.ContextPermalink: "https://guestbook.example.com/conference/amsterdam-2019",
	})

	assert.Equal(t, entity.SpamScoreHam, score)
	assert.Equal(t, "secret", got["api_key"])
	assert.Equal(t, "https://guestbook.example.com", got["blog"])
	assert.Equal(t, "comment", got["comment_type"])
	assert.Equal(t, "Fabien", got["comment_author"])
	assert.Equal(t, "me@example.com", got["comment_author_email"])
	assert.Equal(t, "This was a great conference.", got["comment_content"])
	assert.Equal(t, "2025-03-01T12:00:00Z", got["comment_date_gmt"])
	assert.Equal(t, "127.0.0.1", got["user_ip"])
	assert.Equal(t, "Mozilla", got["user_agent"])
	assert.Equal(t, "https://example.com/", got["referrer"])
	assert.Equal(t, "https://guestbook.example.com/conference/amsterdam-2019", got["permalink"])
	assert.NotContains(t, got, "is_test")
}

func TestScoreVerdicts(t *testing.T) {
	tests := []struct {
		name   string
		header map[string]string
		status int
		body   string
		want   entity.SpamScore
	}{
		{name: "ham", body: "false", want: entity.SpamScoreHam},
		{name: "spam", body: "true", want: entity.SpamScoreAmbiguous},
		{name: "discard", header: map[string]string{proTipHeader: "discard"}, body: "true", want: entity.SpamScoreBlatant},
		{name: "invalid key", header: map[string]string{debugHelpHeader: "We were unable to parse your blog URI"}, body: "invalid", want: entity.SpamScoreAmbiguous},
		{name: "garbage", body: "maybe", want: entity.SpamScoreAmbiguous},
		{name: "server error", status: http.StatusInternalServerError, want: entity.SpamScoreAmbiguous},
		{name: "rate limited", status: http.StatusTooManyRequests, want: entity.SpamScoreAmbiguous},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newTestAkismet(t, func(w http.ResponseWriter, r *http.Request) {
				for k, v := range tt.header {
					w.Header().Set(k, v)
				}
				if tt.status != 0 {
					w.WriteHeader(tt.status)
				}
				_, _ = w.Write([]byte(tt.body))
			})
			assert.Equal(t, tt.want, a.Score(context.Background(), newComment(), nil))
		})
	}
}

func TestScoreTimeoutIsAmbiguous(t *testing.T) {
	release := make(chan struct{})
	a := newTestAkismet(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
		_, _ = w.Write([]byte("false"))
	})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	assert.Equal(t, entity.SpamScoreAmbiguous, a.Score(ctx, newComment(), nil))
}

func TestEndpointTemplateUsesKey(t *testing.T) {
	a := NewAkismet(AkismetConfig{Key: "abc123"}).(*Akismet)
	assert.Equal(t, "https://abc123.rest.akismet.com/1.1/comment-check", a.endpoint)
}
