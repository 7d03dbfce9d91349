package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"go.uber.org/zap"

	"github.com/incident-comms/bot/internal/model"
	tmpl "github.com/incident-comms/bot/internal/template"
)

var ErrNoReplier = errors.New("no replier for incident request")

// 저장소 쓰기 상한 (백엔드 공통)
const persistTimeout = 30 * time.Second

type messageGenerator interface {
	GenerateIncidentMessages(ctx context.Context, description string) (*model.GeneratedMessages, error)
}

type incidentStore interface {
	Backend() string
	SaveIncidentMessage(ctx context.Context, record model.IncidentRecord) (*model.SavedRecord, error)
}

type statusNotifier interface {
	Deliver(ctx context.Context, record model.IncidentRecord, saved *model.SavedRecord)
}

// IncidentService - 장애 설명 1건을 검증, 생성, 응답, 저장까지 처리
type IncidentService struct {
	generator messageGenerator
	store     incidentStore
	notifier  statusNotifier
	metrics   *Metrics
	logger    *zap.Logger
}

// NewIncidentService 생성자 (notifier, metrics는 nil 허용)
func NewIncidentService(generator messageGenerator, store incidentStore, notifier statusNotifier, metrics *Metrics, logger *zap.Logger) *IncidentService {
	return &IncidentService{
		generator: generator,
		store:     store,
		notifier:  notifier,
		metrics:   metrics,
		logger:    logger.Named("incident"),
	}
}

// ExtractDescription - 원문에서 장애 설명을 추출
// stripLeadingToken이면 첫 공백 구간 앞의 토큰(봇 멘션)을 제거
func ExtractDescription(raw string, stripLeadingToken bool) string {
	text := strings.TrimSpace(raw)
	if text == "" || !stripLeadingToken {
		return text
	}

	idx := strings.IndexFunc(text, unicode.IsSpace)
	if idx < 0 {
		return ""
	}
	return strings.TrimLeftFunc(text[idx:], unicode.IsSpace)
}

// IsValidDescription - 공백 제거 후 비어있지 않으면 유효
func IsValidDescription(description string) bool {
	return strings.TrimSpace(description) != ""
}

// Process - 요청 1건을 종료 상태까지 진행
//
// 사용자에게는 최종 응답이 정확히 1번 전달됩니다 (placeholder 교체 포함).
// 응답 전송 자체가 실패하면 error를 반환하며, 이때의 처리는 호출자(handler) 책임입니다.
func (s *IncidentService) Process(ctx context.Context, req model.IncidentRequest, replier Replier) (model.IncidentOutcome, error) {
	if replier == nil {
		return model.IncidentOutcome{State: model.StateFailed}, ErrNoReplier
	}

	log := s.logger.With(
		zap.String("user", req.RequesterID),
		zap.String("channel", req.ChannelID),
	)

	description := ExtractDescription(req.RawText, req.StripLeadingToken)
	if !IsValidDescription(description) {
		if _, err := replier.Send(ctx, MsgMissingDescription); err != nil {
			return s.fail(), fmt.Errorf("send validation reply: %w", err)
		}
		log.Info("Rejected empty incident description")
		return s.finish(model.IncidentOutcome{State: model.StateRejectedInvalid}), nil
	}

	handle, err := replier.Send(ctx, MsgGenerating)
	if err != nil {
		return s.fail(), fmt.Errorf("send processing indicator: %w", err)
	}
	reply := newPlaceholderReply(replier, handle)

	start := time.Now()
	msgs, err := s.generator.GenerateIncidentMessages(ctx, description)
	generated := err == nil && msgs.Complete()
	s.metrics.observeGeneration(generated, time.Since(start))

	if !generated {
		if err == nil {
			err = errors.New("incomplete generated messages")
		}
		log.Warn(fmt.Sprintf("Failed to generate messages for user %s", req.RequesterID), zap.Error(err))
		if err := reply.deliver(ctx, MsgGenerationFailed); err != nil {
			return s.fail(), fmt.Errorf("send generation failure reply: %w", err)
		}
		return s.finish(model.IncidentOutcome{State: model.StateRejectedGenerationFailed}), nil
	}

	if err := reply.deliver(ctx, tmpl.RenderIncidentReply(msgs.CustomerMessage, msgs.InternalMessage)); err != nil {
		return s.fail(), fmt.Errorf("deliver incident reply: %w", err)
	}

	record := model.NewIncidentRecord(description, *msgs, req.RequesterID, req.ChannelID)
	saved := s.persist(ctx, record, log)

	if s.notifier != nil {
		s.notifier.Deliver(ctx, record, saved)
	}

	return s.finish(model.IncidentOutcome{
		State:     model.StateDelivered,
		Persisted: saved != nil,
		Record:    saved,
	}), nil
}

// persist - 저장 실패는 로그만 남기고 nil 반환
func (s *IncidentService) persist(ctx context.Context, record model.IncidentRecord, log *zap.Logger) *model.SavedRecord {
	if s.store == nil {
		log.Warn(fmt.Sprintf("Incident processed but failed to save to database for user %s", record.User),
			zap.String("reason", "no store configured"))
		return nil
	}

	saveCtx, cancel := context.WithTimeout(ctx, persistTimeout)
	defer cancel()

	saved, err := s.store.SaveIncidentMessage(saveCtx, record)
	s.metrics.observePersist(s.store.Backend(), err == nil)
	if err != nil {
		log.Warn(fmt.Sprintf("Incident processed but failed to save to database for user %s", record.User),
			zap.String("backend", s.store.Backend()),
			zap.Error(err),
		)
		return nil
	}
	if saved == nil {
		saved = &model.SavedRecord{}
	}

	log.Info(fmt.Sprintf("Successfully processed incident from user %s in channel %s", record.User, record.Channel),
		zap.String("object_id", saved.ObjectID),
	)
	return saved
}

func (s *IncidentService) finish(outcome model.IncidentOutcome) model.IncidentOutcome {
	s.metrics.observeIncident(string(outcome.State))
	return outcome
}

func (s *IncidentService) fail() model.IncidentOutcome {
	return s.finish(model.IncidentOutcome{State: model.StateFailed})
}
