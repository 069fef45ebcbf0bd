package main

import (
	"net/http"
	"os"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
)

// Локальная замена сервиса репутации: вердикт зависит от маркеров в тексте комментария
const (
	markerBlatant = "[blatant]"
	markerSpam    = "[spam]"
	markerBroken  = "[broken]"
)

func commentCheck(c echo.Context) error {
	if c.FormValue("api_key") == "" {
		c.Response().Header().Set("X-akismet-debug-help", "Empty \"api_key\" value")
		return c.String(http.StatusOK, "invalid")
	}

	content := strings.ToLower(c.FormValue("comment_content"))
	switch {
	case strings.Contains(content, markerBroken):
		return c.String(http.StatusInternalServerError, "")
	case strings.Contains(content, markerBlatant):
		c.Response().Header().Set("X-akismet-pro-tip", "discard")
		return c.String(http.StatusOK, "true")
	case strings.Contains(content, markerSpam):
		return c.String(http.StatusOK, "true")
	default:
		return c.String(http.StatusOK, "false")
	}
}

func main() {
	addr := os.Getenv("MOCK_ADDR")
	if addr == "" {
		addr = ":8081"
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.POST("/1.1/comment-check", commentCheck)

	log.Infof("Сервис проверки на спам запущен на %s", addr)
	log.Fatal(e.Start(addr))
}
