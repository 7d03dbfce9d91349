package handler

import (
	"bytes"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/slack-go/slack"
	"go.uber.org/zap"

	"github.com/incident-comms/bot/internal/model"
)

// 서명 검증 시 읽을 수 있는 최대 body 크기
const maxSlackBodyBytes = 1 << 20

// SlackSignatureMiddleware - X-Slack-Signature 검증
// 검증 후 body를 다시 채워 이후 핸들러가 읽을 수 있도록 함
func SlackSignatureMiddleware(signingSecret string, logger *zap.Logger) gin.HandlerFunc {
	logger = logger.Named("slack_signature")

	return func(c *gin.Context) {
		verifier, err := slack.NewSecretsVerifier(c.Request.Header, signingSecret)
		if err != nil {
			logger.Warn("Rejected Slack request without valid signature headers", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, model.ErrorResponse{Error: "unauthorized"})
			return
		}

		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxSlackBodyBytes))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, model.ErrorResponse{Error: "failed to read body"})
			return
		}
		_ = c.Request.Body.Close()

		if _, err := verifier.Write(body); err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, model.ErrorResponse{Error: "failed to verify request"})
			return
		}
		if err := verifier.Ensure(); err != nil {
			logger.Warn("Rejected Slack request with invalid signature", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, model.ErrorResponse{Error: "unauthorized"})
			return
		}

		c.Request.Body = io.NopCloser(bytes.NewReader(body))
		c.Next()
	}
}

// RequestLogger - gin 접근 로그를 zap으로 기록
func RequestLogger(logger *zap.Logger) gin.HandlerFunc {
	logger = logger.Named("http")

	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			logger.Error("request", fields...)
		case c.Request.URL.Path == "/health" || c.Request.URL.Path == "/metrics":
			logger.Debug("request", fields...)
		default:
			logger.Info("request", fields...)
		}
	}
}

// Recovery - 핸들러 panic을 500으로 변환하고 stack과 함께 기록
func Recovery(logger *zap.Logger) gin.HandlerFunc {
	logger = logger.Named("http")

	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic recovered",
					zap.Any("panic", r),
					zap.String("path", c.Request.URL.Path),
					zap.Stack("stack"),
				)
				c.AbortWithStatusJSON(http.StatusInternalServerError, model.ErrorResponse{Error: "internal server error"})
			}
		}()
		c.Next()
	}
}
