// Package template provides Slack reply formatting and webhook body template rendering.
//
// 지원하는 변수 형식:
//
//	{{incident.text}}, {{incident.customer_message}}, {{incident.internal_message}},
//	{{incident.user}}, {{incident.channel}}, {{incident.source}}, {{incident.created_at}}
package template

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/incident-comms/bot/internal/model"
)

// Slack mrkdwn 응답 레이아웃
const incidentReplyLayout = `*Incident Communication Messages Generated*

*Customer-Facing Message:*
{{customer_message}}

---

*Internal Team Message:*
{{internal_message}}

---
_Messages saved to database for future reference._
`

// DefaultWebhookBody - STATUS_WEBHOOK_BODY 미설정 시 사용하는 본문
const DefaultWebhookBody = `{"message": {{incident.customer_message|json}}, "source": "{{incident.source}}"}`

// RenderIncidentReply - 고객용/내부용 메시지를 Slack 응답 텍스트로 렌더링
//
// 입력값은 그대로 삽입되며, 레이아웃은 한 번만 스캔하므로
// 메시지 안에 치환 변수가 들어있어도 다시 치환되지 않습니다.
func RenderIncidentReply(customerMsg, internalMsg string) string {
	return strings.NewReplacer(
		"{{customer_message}}", customerMsg,
		"{{internal_message}}", internalMsg,
	).Replace(incidentReplyLayout)
}

// IncidentData - 템플릿 렌더링에 사용할 레코드 데이터
type IncidentData struct {
	Text            string
	CustomerMessage string
	InternalMessage string
	User            string
	Channel         string
	Source          string
	CreatedAt       time.Time
}

// IncidentDataFromRecord - 저장 레코드(및 저장 결과)에서 IncidentData 생성
// saved가 nil이면 created_at은 now로 채움
func IncidentDataFromRecord(rec model.IncidentRecord, saved *model.SavedRecord, now time.Time) IncidentData {
	createdAt := now
	if saved != nil && !saved.CreatedAt.IsZero() {
		createdAt = saved.CreatedAt
	}
	return IncidentData{
		Text:            rec.IncidentText,
		CustomerMessage: rec.CustomerMessage,
		InternalMessage: rec.InternalMessage,
		User:            rec.User,
		Channel:         rec.Channel,
		Source:          rec.Source,
		CreatedAt:       createdAt,
	}
}

// RenderBody - webhook body 템플릿의 변수를 실제 값으로 치환
//
// {{name|json}} 형식은 JSON 문자열 리터럴(따옴표 포함)로 치환됩니다.
// body가 비어있으면 DefaultWebhookBody를 사용합니다.
func RenderBody(body string, incident IncidentData) string {
	if body == "" {
		body = DefaultWebhookBody
	}

	vars := []struct {
		name  string
		value string
	}{
		{"text", incident.Text},
		{"customer_message", incident.CustomerMessage},
		{"internal_message", incident.InternalMessage},
		{"user", incident.User},
		{"channel", incident.Channel},
		{"source", incident.Source},
		{"created_at", incident.CreatedAt.UTC().Format(time.RFC3339)},
	}

	pairs := make([]string, 0, len(vars)*4)
	for _, v := range vars {
		pairs = append(pairs,
			"{{incident."+v.name+"|json}}", jsonString(v.value),
			"{{incident."+v.name+"}}", v.value,
		)
	}

	return strings.NewReplacer(pairs...).Replace(body)
}

func jsonString(s string) string {
	b, err := json.Marshal(s)
	if err != nil {
		return `""`
	}
	return string(b)
}
