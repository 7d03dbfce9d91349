// Slack에서 들어온 장애 설명과 AI가 생성한 메시지, 저장 레코드 구조체를 정의
// handler, service, client, db 레이어에서 공통으로 사용하기 때문에 model 레이어에 별도로 정의

package model

import "time"

// IncidentMessageClass - SashiDo(Parse)에 저장되는 클래스 이름
const IncidentMessageClass = "IncidentMessage"

// DefaultIncidentSource - 레코드 source 필드 기본값
const DefaultIncidentSource = "chat"

// IncidentRequest - 인바운드 이벤트 1건 (저장하지 않음)
type IncidentRequest struct {
	RawText     string
	RequesterID string
	ChannelID   string

	// 트리거 종류: mention이면 선두 토큰(봇 멘션) 제거
	StripLeadingToken bool
}

// GeneratedMessages - AI가 생성한 메시지 쌍
// 두 필드 모두 비어있지 않아야 유효
type GeneratedMessages struct {
	CustomerMessage string `json:"customerMessage"`
	InternalMessage string `json:"internalMessage"`
}

// Complete - 두 메시지가 모두 채워졌는지 확인
func (m *GeneratedMessages) Complete() bool {
	return m != nil && m.CustomerMessage != "" && m.InternalMessage != ""
}

// IncidentRecord - 저장소에 기록되는 장애 커뮤니케이션 레코드
type IncidentRecord struct {
	IncidentText    string `json:"incidentText"`
	CustomerMessage string `json:"customerMessage"`
	InternalMessage string `json:"internalMessage"`
	User            string `json:"user"`    // 요청한 Slack 사용자 ID
	Channel         string `json:"channel"` // 대화가 발생한 Slack 채널 ID
	Source          string `json:"source"`
}

// NewIncidentRecord - 완성된 메시지 쌍으로만 레코드를 생성
func NewIncidentRecord(incidentText string, msgs GeneratedMessages, user, channel string) IncidentRecord {
	return IncidentRecord{
		IncidentText:    incidentText,
		CustomerMessage: msgs.CustomerMessage,
		InternalMessage: msgs.InternalMessage,
		User:            user,
		Channel:         channel,
		Source:          DefaultIncidentSource,
	}
}

// SavedRecord - 저장소가 create 호출 후 돌려준 결과
type SavedRecord struct {
	ObjectID  string    `json:"objectId"`
	CreatedAt time.Time `json:"createdAt"`
}

// IncidentState - 오케스트레이션 종료 상태
type IncidentState string

const (
	StateRejectedInvalid          IncidentState = "rejected_invalid"
	StateRejectedGenerationFailed IncidentState = "rejected_generation_failed"
	StateDelivered                IncidentState = "delivered"

	// 응답 전송 실패 등 경계 오류로 중단된 경우
	StateFailed IncidentState = "failed"
)

// IncidentOutcome - 한 건의 처리 결과
type IncidentOutcome struct {
	State     IncidentState
	Persisted bool
	Record    *SavedRecord
}

// Success - 최종 응답까지 전달되었으면 성공 (저장 실패와 무관)
func (o IncidentOutcome) Success() bool {
	return o.State == StateDelivered
}
