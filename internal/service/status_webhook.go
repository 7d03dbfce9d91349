package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/incident-comms/bot/internal/config"
	"github.com/incident-comms/bot/internal/model"
	tmpl "github.com/incident-comms/bot/internal/template"
)

// StatusWebhookService - 전달이 끝난 장애 메시지를 외부 상태 페이지 Webhook으로 중계
//
// Slack 응답과 독립적으로 동작하며 실패해도 로그만 남깁니다.
type StatusWebhookService struct {
	cfg        config.StatusWebhookConfig
	httpClient *http.Client
	metrics    *Metrics
	logger     *zap.Logger
	now        func() time.Time
}

// NewStatusWebhookService 생성자
func NewStatusWebhookService(cfg config.StatusWebhookConfig, metrics *Metrics, logger *zap.Logger) *StatusWebhookService {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if strings.TrimSpace(cfg.Method) == "" {
		cfg.Method = http.MethodPost
	}
	return &StatusWebhookService{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		metrics:    metrics,
		logger:     logger.Named("status_webhook"),
		now:        time.Now,
	}
}

// Enabled - STATUS_WEBHOOK_URL이 설정되어 있으면 true
func (s *StatusWebhookService) Enabled() bool {
	return s != nil && strings.TrimSpace(s.cfg.URL) != ""
}

// Deliver - 레코드를 body 템플릿으로 렌더링해 전송 (best effort)
func (s *StatusWebhookService) Deliver(ctx context.Context, record model.IncidentRecord, saved *model.SavedRecord) {
	if !s.Enabled() {
		return
	}

	rendered := tmpl.RenderBody(s.cfg.Body, tmpl.IncidentDataFromRecord(record, saved, s.now()))
	if err := s.sendHTTP(ctx, rendered); err != nil {
		s.metrics.observeStatusWebhook(false)
		s.logger.Warn("Failed to deliver status webhook",
			zap.String("url", s.cfg.URL),
			zap.String("user", record.User),
			zap.Error(err),
		)
		return
	}
	s.metrics.observeStatusWebhook(true)
	s.logger.Info("Delivered status webhook", zap.String("url", s.cfg.URL))
}

// sendHTTP - 설정된 URL로 HTTP 요청 1회 전송
func (s *StatusWebhookService) sendHTTP(ctx context.Context, body string) error {
	req, err := http.NewRequestWithContext(ctx, s.cfg.Method, s.cfg.URL, bytes.NewBufferString(body))
	if err != nil {
		return err
	}

	// Content-Type 기본값 설정 (없으면 application/json)
	hasContentType := false
	for k, v := range s.cfg.Headers {
		if k == "" {
			continue
		}
		req.Header.Set(k, v)
		if http.CanonicalHeaderKey(k) == "Content-Type" {
			hasContentType = true
		}
	}
	if !hasContentType {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status code %d", resp.StatusCode)
	}
	return nil
}
