package spamchecker

import (
	"context"
	"fmt"
	"guestbook-backend/internal/entity"
	"guestbook-backend/internal/metrics"
	"guestbook-backend/internal/usecase"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/labstack/gommon/log"
)

const (
	DefaultEndpoint = "https://%s.rest.akismet.com/1.1/comment-check"

	proTipHeader    = "X-akismet-pro-tip"
	debugHelpHeader = "X-akismet-debug-help"
)

type AkismetConfig struct {
	Key      string
	Endpoint string // может содержать %s для ключа
	SiteURL  string
	Test     bool
	// Retries - число повторов на сетевые ошибки и 5xx; общий срок все равно ограничен контекстом
	Retries int
}

type Akismet struct {
	client   *http.Client
	endpoint string
	cfg      AkismetConfig
}

func NewAkismet(cfg AkismetConfig) usecase.SpamScorer {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = cfg.Retries
	retryClient.RetryWaitMin = 100 * time.Millisecond
	retryClient.RetryWaitMax = time.Second
	retryClient.Logger = nil
	// 429 не повторяем: отдаем неоднозначную оценку сразу
	retryClient.CheckRetry = func(ctx context.Context, resp *http.Response, err error) (bool, error) {
		if err == nil && resp.StatusCode == http.StatusTooManyRequests {
			return false, nil
		}
		return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if strings.Contains(endpoint, "%s") {
		endpoint = fmt.Sprintf(endpoint, cfg.Key)
	}

	return &Akismet{
		client:   retryClient.StandardClient(),
		endpoint: endpoint,
		cfg:      cfg,
	}
}

func (a *Akismet) form(comment *entity.Comment, submission map[string]string) url.Values {
	form := url.Values{}
	form.Set("api_key", a.cfg.Key)
	form.Set("blog", a.cfg.SiteURL)
	form.Set("comment_type", "comment")
	form.Set("comment_author", comment.Author)
	form.Set("comment_author_email", comment.Email)
	form.Set("comment_content", comment.Text)
	form.Set("comment_date_gmt", comment.CreatedAt.UTC().Format(time.RFC3339))
	form.Set("blog_lang", "en")
	form.Set("blog_charset", "UTF-8")
	form.Set("user_ip", submission[entity.ContextIP])
	form.Set("user_agent", submission[entity.ContextUserAgent])
	form.Set("referrer", submission[entity.ContextReferrer])
	form.Set("permalink", submission[entity.ContextPermalink])
	if a.cfg.Test {
		form.Set("is_test", "true")
	}
	return form
}

// Score никогда не возвращает ошибку: любой сбой сервиса репутации означает неоднозначную оценку
func (a *Akismet) Score(ctx context.Context, comment *entity.Comment, submission map[string]string) entity.SpamScore {
	start := time.Now()
	defer func() {
		metrics.SpamCheckDuration.Observe(time.Since(start).Seconds())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, strings.NewReader(a.form(comment, submission).Encode()))
	if err != nil {
		return degraded(comment.ID, "request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return degraded(comment.ID, "timeout", err)
		}
		return degraded(comment.ID, "transport", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return degraded(comment.ID, "status", fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1024))
	if err != nil {
		return degraded(comment.ID, "transport", err)
	}
	return parseVerdict(resp.Header, string(body), comment.ID)
}

func parseVerdict(header http.Header, body string, commentID int) entity.SpamScore {
	if help := header.Get(debugHelpHeader); help != "" {
		return degraded(commentID, "debug_help", fmt.Errorf("akismet: %s", help))
	}
	if header.Get(proTipHeader) == "discard" {
		return entity.SpamScoreBlatant
	}

	switch strings.TrimSpace(body) {
	case "true":
		return entity.SpamScoreAmbiguous
	case "false":
		return entity.SpamScoreHam
	default:
		return degraded(commentID, "response", fmt.Errorf("unexpected response %q", body))
	}
}

func degraded(commentID int, reason string, err error) entity.SpamScore {
	metrics.SpamCheckDegraded.WithLabelValues(reason).Inc()
	log.Warnf("проверка комментария %d на спам не удалась (%s), оценка неоднозначная: %v", commentID, reason, err)
	return entity.SpamScoreAmbiguous
}
