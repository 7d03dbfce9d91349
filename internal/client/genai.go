// Gemini(google.golang.org/genai)로 장애 커뮤니케이션 메시지를 생성하는 클라이언트
//
// 환경변수:
//   - GEMINI_API_KEY: Gemini API Key
//   - GEMINI_MODEL: 모델 이름 (기본값 gemini-2.5-flash)
//
// 요청 구성:
//   - user content: 장애 설명 원문
//   - system instruction: 고객용/내부용 메시지 두 개만 JSON으로 반환하도록 지시
//   - temperature 0.1, application/json + 필수 필드 2개짜리 response schema

package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/incident-comms/bot/internal/config"
	"github.com/incident-comms/bot/internal/model"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

const (
	customerMessageField = "customerMessage"
	internalMessageField = "internalMessage"

	generationTemperature = 0.1
)

var (
	ErrGenerationFailed  = errors.New("incident message generation failed")
	ErrMalformedResponse = errors.New("malformed generation response")
	ErrMissingFields     = errors.New("response missing required fields")
)

const incidentSystemInstruction = `You are an assistant helping DevOps teams write clear, calm, professional messages to customers during incidents.

Your only task is to read the incident description and generate two outputs:

1. A clear, calm, and professional customer-facing message for a public status page.

2. A short, concise, and technical internal message for the support team.

Always return the result as a single JSON object with keys 'customerMessage' and 'internalMessage'. Do not include any introductory or explanatory text outside the JSON object.`

// contentGenerator - genai.Models 중 사용하는 메서드만 추출 (테스트에서 교체)
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiClient 구조체 정의
type GeminiClient struct {
	models contentGenerator
	model  string
	logger *zap.Logger
}

// GeminiClient 객체 생성 (프로세스 시작 시 1회)
func NewGeminiClient(ctx context.Context, cfg config.GeminiConfig, logger *zap.Logger) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("missing GEMINI_API_KEY")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return newGeminiClient(client.Models, cfg.Model, logger), nil
}

func newGeminiClient(models contentGenerator, modelName string, logger *zap.Logger) *GeminiClient {
	if modelName == "" {
		modelName = "gemini-2.5-flash"
	}
	return &GeminiClient{
		models: models,
		model:  modelName,
		logger: logger.Named("gemini"),
	}
}

// Model - 사용 중인 모델 이름
func (c *GeminiClient) Model() string {
	return c.model
}

// GenerateIncidentMessages - 장애 설명으로 고객용/내부용 메시지 생성 (재시도 없음)
//
// 실패는 모두 여기서 로깅하고 error로 반환합니다.
//   - 전송/서비스 오류: ErrGenerationFailed
//   - JSON 파싱 실패: ErrMalformedResponse
//   - 필수 필드 누락: ErrMissingFields
func (c *GeminiClient) GenerateIncidentMessages(ctx context.Context, description string) (*model.GeneratedMessages, error) {
	contents := []*genai.Content{
		genai.NewContentFromText(description, genai.RoleUser),
	}

	resp, err := c.models.GenerateContent(ctx, c.model, contents, incidentGenerateConfig())
	if err != nil {
		c.logger.Error("Error generating AI response", zap.String("model", c.model), zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrGenerationFailed, err)
	}
	if resp == nil {
		c.logger.Error("Empty AI response", zap.String("model", c.model))
		return nil, fmt.Errorf("%w: empty response", ErrGenerationFailed)
	}

	msgs, err := ParseIncidentMessages(resp.Text())
	if err != nil {
		if errors.Is(err, ErrMissingFields) {
			c.logger.Warn("Response missing required fields", zap.String("model", c.model), zap.Error(err))
		} else {
			c.logger.Warn("Error parsing JSON response", zap.String("model", c.model), zap.Error(err))
		}
		return nil, err
	}
	return msgs, nil
}

// 생성 설정: 낮은 temperature + 필수 필드 2개 structured output
func incidentGenerateConfig() *genai.GenerateContentConfig {
	return &genai.GenerateContentConfig{
		Temperature:       genai.Ptr[float32](generationTemperature),
		ResponseMIMEType:  "application/json",
		SystemInstruction: genai.NewContentFromText(incidentSystemInstruction, genai.RoleUser),
		ResponseSchema: &genai.Schema{
			Type:     genai.TypeObject,
			Required: []string{customerMessageField, internalMessageField},
			Properties: map[string]*genai.Schema{
				customerMessageField: {
					Type:        genai.TypeString,
					Description: "A clear, calm, and professional message for the public status page.",
				},
				internalMessageField: {
					Type:        genai.TypeString,
					Description: "A short, concise, and technical message for the internal support team.",
				},
			},
		},
	}
}

// ParseIncidentMessages - 응답 텍스트를 JSON 객체로 파싱하고 필수 필드를 검증
//
// 벤더의 schema 강제에 의존하지 않고 여기서 한 번 더 확인합니다.
// 두 필드 모두 JSON 문자열이어야 하며 값은 가공 없이 그대로 사용합니다.
func ParseIncidentMessages(text string) (*model.GeneratedMessages, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}

	customer, err := stringField(raw, customerMessageField)
	if err != nil {
		return nil, err
	}
	internal, err := stringField(raw, internalMessageField)
	if err != nil {
		return nil, err
	}

	return &model.GeneratedMessages{
		CustomerMessage: customer,
		InternalMessage: internal,
	}, nil
}

func stringField(raw map[string]json.RawMessage, name string) (string, error) {
	val, ok := raw[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrMissingFields, name)
	}
	var s string
	if err := json.Unmarshal(val, &s); err != nil {
		return "", fmt.Errorf("%w: %s is not a string", ErrMissingFields, name)
	}
	if s == "" {
		return "", fmt.Errorf("%w: %s is empty", ErrMissingFields, name)
	}
	return s, nil
}
