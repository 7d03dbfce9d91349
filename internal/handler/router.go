package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RouterConfig - 라우터 구성에 필요한 의존성
type RouterConfig struct {
	Slack          *SlackHandler
	SigningSecret  string
	MetricsHandler http.Handler
	Logger         *zap.Logger
}

// NewRouter - gin 엔진에 전체 라우트 등록
func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(Recovery(cfg.Logger), RequestLogger(cfg.Logger))

	r.GET("/", Root)
	r.GET("/health", Health)
	r.GET("/ping", Ping)
	if cfg.MetricsHandler != nil {
		r.GET("/metrics", gin.WrapH(cfg.MetricsHandler))
	}

	slackGroup := r.Group("/slack", SlackSignatureMiddleware(cfg.SigningSecret, cfg.Logger))
	{
		slackGroup.POST("/events", cfg.Slack.Events)
		slackGroup.POST("/commands", cfg.Slack.Commands)
	}

	return r
}
