// SashiDo(Parse Server) REST API에 장애 메시지 레코드를 저장하는 클라이언트
//
// 환경변수:
//   - SASHIDO_APP_ID: X-Parse-Application-Id 헤더 값
//   - SASHIDO_REST_KEY: X-Parse-REST-API-Key 헤더 값
//   - SASHIDO_API_URL: Parse 서버 URL (예: https://pg-app-xxxx.scalabl.cloud/1/)
//   - SASHIDO_TIMEOUT: 요청 타임아웃 (기본값 30s)
//
// 저장 요청:
//   - POST {SASHIDO_API_URL}/classes/IncidentMessage
//   - 재시도, idempotency key 없음 (같은 레코드를 두 번 보내면 두 건이 저장됨)

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/incident-comms/bot/internal/config"
	"github.com/incident-comms/bot/internal/model"
	"go.uber.org/zap"
)

var ErrStoreRequest = errors.New("incident store request failed")

// SashidoClient 구조체 정의
type SashidoClient struct {
	baseURL    string
	appID      string
	restKey    string
	httpClient *http.Client
	logger     *zap.Logger
}

// parseCreateResponse - Parse create object 응답
type parseCreateResponse struct {
	ObjectID  string `json:"objectId"`
	CreatedAt string `json:"createdAt"`
}

// SashidoClient 객체 생성
func NewSashidoClient(cfg config.SashidoConfig, logger *zap.Logger) *SashidoClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &SashidoClient{
		baseURL: strings.TrimRight(cfg.APIURL, "/"),
		appID:   cfg.AppID,
		restKey: cfg.RestKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger.Named("sashido"),
	}
}

// Backend - 메트릭/로그용 저장소 이름
func (c *SashidoClient) Backend() string {
	return config.StoreSashido
}

// POST /classes/IncidentMessage 레코드 저장
func (c *SashidoClient) SaveIncidentMessage(ctx context.Context, record model.IncidentRecord) (*model.SavedRecord, error) {
	saved, err := c.createObject(ctx, model.IncidentMessageClass, record)
	if err != nil {
		c.logger.Warn("Error saving incident message to SashiDo database",
			zap.String("user", record.User),
			zap.String("channel", record.Channel),
			zap.Error(err),
		)
		return nil, err
	}
	return saved, nil
}

func (c *SashidoClient) createObject(ctx context.Context, class string, body any) (*model.SavedRecord, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal record: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/classes/"+class, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("X-Parse-Application-Id", c.appID)
	req.Header.Set("X-Parse-REST-API-Key", c.restKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreRequest, err)
	}
	defer resp.Body.Close()

	is2xx := resp.StatusCode >= 200 && resp.StatusCode < 300
	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil && is2xx {
		return nil, fmt.Errorf("%w: failed to read response: %w", ErrStoreRequest, err)
	}
	if !is2xx {
		return nil, fmt.Errorf("%w: sashido returned status %d: %s", ErrStoreRequest, resp.StatusCode, truncateBody(respBody, 512))
	}

	var created parseCreateResponse
	if len(bytes.TrimSpace(respBody)) > 0 {
		if err := json.Unmarshal(respBody, &created); err != nil {
			// 2xx면 저장은 성공한 것으로 간주
			c.logger.Debug("Unparseable create response", zap.Error(err))
		}
	}

	saved := &model.SavedRecord{ObjectID: created.ObjectID}
	if created.CreatedAt != "" {
		if ts, err := time.Parse(time.RFC3339Nano, created.CreatedAt); err == nil {
			saved.CreatedAt = ts
		}
	}
	return saved, nil
}

func truncateBody(b []byte, limit int) string {
	if len(b) <= limit {
		return string(b)
	}
	return string(b[:limit]) + "..."
}
