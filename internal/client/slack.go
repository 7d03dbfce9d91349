// Slack Web API(slack-go)와 통신하는 클라이언트 정의
//
// 환경변수:
//   - SLACK_BOT_TOKEN: Slack Bot Token (xoxb-...)
//
// 응답 방식은 트리거에 따라 두 가지:
//   - app_mention: 멘션 메시지 쓰레드에 답글 전송, 전송한 메시지의 ts로 chat.update 가능
//   - slash command: response_url로 ephemeral 응답 전송, 수정 불가

package client

import (
	"context"
	"fmt"

	"github.com/incident-comms/bot/internal/config"
	"github.com/slack-go/slack"
	"go.uber.org/zap"
)

// slackAPI - slack.Client 중 사용하는 메서드만 추출
type slackAPI interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
	UpdateMessageContext(ctx context.Context, channelID, timestamp string, options ...slack.MsgOption) (string, string, string, error)
}

// SlackClient 구조체 정의
type SlackClient struct {
	api    slackAPI
	logger *zap.Logger
}

// SlackClient 객체 생성
func NewSlackClient(cfg config.SlackConfig, logger *zap.Logger, opts ...slack.Option) *SlackClient {
	return &SlackClient{
		api:    slack.New(cfg.BotToken, opts...),
		logger: logger.Named("slack"),
	}
}

// 특정 쓰레드에 메시지 전송 후 메시지 ts 반환
func (c *SlackClient) PostToThread(ctx context.Context, channelID, threadTS, text string) (string, error) {
	opts := []slack.MsgOption{slack.MsgOptionText(text, false)}
	if threadTS != "" {
		opts = append(opts, slack.MsgOptionTS(threadTS))
	}

	_, ts, err := c.api.PostMessageContext(ctx, channelID, opts...)
	if err != nil {
		return "", fmt.Errorf("failed to post message: %w", err)
	}
	c.logger.Debug("Posted Slack message", zap.String("channel", channelID), zap.String("thread_ts", threadTS), zap.String("ts", ts))
	return ts, nil
}

// 이미 전송한 메시지 본문 교체 (chat.update)
func (c *SlackClient) UpdateMessage(ctx context.Context, channelID, ts, text string) error {
	if _, _, _, err := c.api.UpdateMessageContext(ctx, channelID, ts, slack.MsgOptionText(text, false)); err != nil {
		return fmt.Errorf("failed to update message: %w", err)
	}
	return nil
}

// slash command response_url로 ephemeral 메시지 전송
func (c *SlackClient) RespondEphemeral(ctx context.Context, channelID, responseURL, text string) error {
	_, _, err := c.api.PostMessageContext(ctx, channelID,
		slack.MsgOptionText(text, false),
		slack.MsgOptionResponseURL(responseURL, slack.ResponseTypeEphemeral),
	)
	if err != nil {
		return fmt.Errorf("failed to respond via response_url: %w", err)
	}
	return nil
}

// ThreadReplier - app_mention 트리거용 응답기 (수정 지원)
type ThreadReplier struct {
	client    *SlackClient
	channelID string
	threadTS  string
}

// 멘션 메시지 쓰레드에 답글을 다는 응답기 생성
func (c *SlackClient) ThreadReplier(channelID, threadTS string) *ThreadReplier {
	return &ThreadReplier{client: c, channelID: channelID, threadTS: threadTS}
}

// Send - 쓰레드 답글 전송, 반환값은 이후 Update에 쓰는 메시지 ts
func (r *ThreadReplier) Send(ctx context.Context, text string) (string, error) {
	return r.client.PostToThread(ctx, r.channelID, r.threadTS, text)
}

// Update - Send로 보낸 메시지를 제자리에서 교체
func (r *ThreadReplier) Update(ctx context.Context, handle, text string) error {
	return r.client.UpdateMessage(ctx, r.channelID, handle, text)
}

// EphemeralReplier - slash command 트리거용 응답기 (새 메시지만 전송)
type EphemeralReplier struct {
	client      *SlackClient
	channelID   string
	responseURL string
}

// response_url로 응답하는 응답기 생성
func (c *SlackClient) EphemeralReplier(channelID, responseURL string) *EphemeralReplier {
	return &EphemeralReplier{client: c, channelID: channelID, responseURL: responseURL}
}

// Send - ephemeral 응답 전송, 수정할 수 없으므로 handle은 항상 빈 문자열
func (r *EphemeralReplier) Send(ctx context.Context, text string) (string, error) {
	return "", r.client.RespondEphemeral(ctx, r.channelID, r.responseURL, text)
}
