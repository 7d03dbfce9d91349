package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"go.uber.org/zap"

	"github.com/incident-comms/bot/internal/client"
	"github.com/incident-comms/bot/internal/model"
	"github.com/incident-comms/bot/internal/service"
)

// 경계 오류 응답 전송에 쓰는 별도 timeout (처리 context가 만료된 경우 대비)
const errorReplyTimeout = 10 * time.Second

// 처리 시작한 event_id 기억 개수 (Slack 재전송 판별용)
const dispatchedEventsSize = 1024

type incidentProcessor interface {
	Process(ctx context.Context, req model.IncidentRequest, replier service.Replier) (model.IncidentOutcome, error)
}

// replierFactory - 트리거별 응답 수단 생성
type replierFactory interface {
	MentionReplier(channelID, threadTS string) service.Replier
	CommandReplier(channelID, responseURL string) service.Replier
}

// SlackRepliers - SlackClient 기반 replierFactory
type SlackRepliers struct {
	Client *client.SlackClient
}

func (r SlackRepliers) MentionReplier(channelID, threadTS string) service.Replier {
	return r.Client.ThreadReplier(channelID, threadTS)
}

func (r SlackRepliers) CommandReplier(channelID, responseURL string) service.Replier {
	return r.Client.EphemeralReplier(channelID, responseURL)
}

// SlackHandler - Slack Events API / slash command 엔드포인트
//
// 모든 요청은 즉시 200으로 ack하고, 처리는 요청별 goroutine에서 진행합니다.
type SlackHandler struct {
	incidents      incidentProcessor
	repliers       replierFactory
	commandName    string
	processTimeout time.Duration
	logger         *zap.Logger

	dispatched *lru.Cache[string, struct{}]
	wg         sync.WaitGroup
}

func NewSlackHandler(incidents incidentProcessor, repliers replierFactory, commandName string, processTimeout time.Duration, logger *zap.Logger) *SlackHandler {
	if processTimeout <= 0 {
		processTimeout = 2 * time.Minute
	}
	// size > 0이면 lru.New는 실패하지 않음
	dispatched, _ := lru.New[string, struct{}](dispatchedEventsSize)
	return &SlackHandler{
		incidents:      incidents,
		repliers:       repliers,
		commandName:    commandName,
		processTimeout: processTimeout,
		logger:         logger.Named("slack"),
		dispatched:     dispatched,
	}
}

// Events - POST /slack/events
func (h *SlackHandler) Events(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "failed to read body"})
		return
	}

	event, err := slackevents.ParseEvent(json.RawMessage(body), slackevents.OptionNoVerifyToken())
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "invalid event payload"})
		return
	}

	switch event.Type {
	case slackevents.URLVerification:
		var challenge slackevents.ChallengeResponse
		if err := json.Unmarshal(body, &challenge); err != nil {
			c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "invalid challenge payload"})
			return
		}
		c.JSON(http.StatusOK, model.ChallengeResponse{Challenge: challenge.Challenge})
		return

	case slackevents.CallbackEvent:
		if ev, ok := event.InnerEvent.Data.(*slackevents.AppMentionEvent); ok {
			h.handleMention(callbackEventID(event, body), c.GetHeader("X-Slack-Retry-Num"), c.GetHeader("X-Slack-Retry-Reason"), ev)
		}
	}

	c.Status(http.StatusOK)
}

// callbackEventID - outer event_callback의 event_id (없으면 빈 문자열)
func callbackEventID(event slackevents.EventsAPIEvent, body []byte) string {
	if cb, ok := event.Data.(*slackevents.EventsAPICallbackEvent); ok && cb.EventID != "" {
		return cb.EventID
	}
	var outer struct {
		EventID string `json:"event_id"`
	}
	if err := json.Unmarshal(body, &outer); err != nil {
		return ""
	}
	return outer.EventID
}

func (h *SlackHandler) handleMention(eventID, retryNum, retryReason string, ev *slackevents.AppMentionEvent) {
	if ev.BotID != "" {
		return
	}

	// 이 프로세스가 이미 처리를 시작한 event_id만 건너뜀
	// 첫 전달을 받지 못한 재전송(재시작, 연결 실패)은 그대로 처리
	if eventID != "" {
		if seen, _ := h.dispatched.ContainsOrAdd(eventID, struct{}{}); seen {
			h.logger.Info("Skipping already dispatched Slack event",
				zap.String("event_id", eventID),
				zap.String("retry_num", retryNum),
				zap.String("retry_reason", retryReason),
			)
			return
		}
	}
	if retryNum != "" {
		h.logger.Info("Processing Slack event redelivery not seen before",
			zap.String("event_id", eventID),
			zap.String("retry_num", retryNum),
			zap.String("retry_reason", retryReason),
		)
	}

	threadTS := ev.ThreadTimeStamp
	if threadTS == "" {
		threadTS = ev.TimeStamp
	}

	h.dispatch("app_mention", model.IncidentRequest{
		RawText:           ev.Text,
		RequesterID:       ev.User,
		ChannelID:         ev.Channel,
		StripLeadingToken: true,
	}, h.repliers.MentionReplier(ev.Channel, threadTS))
}

// Commands - POST /slack/commands
func (h *SlackHandler) Commands(c *gin.Context) {
	cmd, err := slack.SlashCommandParse(c.Request)
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "invalid slash command payload"})
		return
	}

	if cmd.Command != h.commandName {
		c.JSON(http.StatusOK, gin.H{
			"response_type": slack.ResponseTypeEphemeral,
			"text":          fmt.Sprintf("Unknown command %s. Try %s <incident description>.", cmd.Command, h.commandName),
		})
		return
	}

	h.dispatch("slash_command", model.IncidentRequest{
		RawText:     cmd.Text,
		RequesterID: cmd.UserID,
		ChannelID:   cmd.ChannelID,
	}, h.repliers.CommandReplier(cmd.ChannelID, cmd.ResponseURL))

	c.Status(http.StatusOK)
}

// dispatch - 요청 context와 분리된 goroutine에서 처리
func (h *SlackHandler) dispatch(trigger string, req model.IncidentRequest, replier service.Replier) {
	log := h.logger.With(
		zap.String("request_id", uuid.NewString()),
		zap.String("trigger", trigger),
		zap.String("user", req.RequesterID),
		zap.String("channel", req.ChannelID),
	)

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		h.run(log, trigger, req, replier)
	}()
}

func (h *SlackHandler) run(log *zap.Logger, trigger string, req model.IncidentRequest, replier service.Replier) {
	ctx, cancel := context.WithTimeout(context.Background(), h.processTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			log.Error("Panic handling "+trigger, zap.Any("panic", r), zap.Stack("stack"))
			h.replyGenericError(log, replier)
		}
	}()

	outcome, err := h.incidents.Process(ctx, req, replier)
	if err != nil {
		log.Error("Error handling "+trigger, zap.Error(err))
		h.replyGenericError(log, replier)
		return
	}
	log.Debug("Incident request finished",
		zap.String("state", string(outcome.State)),
		zap.Bool("persisted", outcome.Persisted),
	)
}

func (h *SlackHandler) replyGenericError(log *zap.Logger, replier service.Replier) {
	if replier == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), errorReplyTimeout)
	defer cancel()
	if _, err := replier.Send(ctx, service.MsgGenericError); err != nil {
		log.Error("Failed to send error reply", zap.Error(err))
	}
}

// Wait - 진행 중인 처리가 모두 끝날 때까지 대기 (graceful shutdown)
func (h *SlackHandler) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
