package service

import "context"

// Replier - 요청자에게 새 메시지를 보내는 응답 수단
// Send는 이후 수정에 사용할 수 있는 메시지 핸들을 반환하며, 수정이 불가능한 채널이면 빈 문자열
type Replier interface {
	Send(ctx context.Context, text string) (string, error)
}

// EditableReplier - 이미 보낸 메시지를 제자리에서 교체할 수 있는 응답 수단 (app_mention 쓰레드)
type EditableReplier interface {
	Replier
	Update(ctx context.Context, handle, text string) error
}

// 사용자에게 보이는 고정 문구
const (
	MsgMissingDescription = "Please provide an incident description."
	MsgGenerating         = "Generating incident communication messages..."
	MsgGenerationFailed   = "Sorry, I encountered an error generating the messages. Please try again."
	MsgGenericError       = "An error occurred while processing your request. Please try again."
)

// placeholderReply - 처리 중 메시지와 그 핸들
// 핸들이 있고 수정 가능한 채널이면 최종 응답은 placeholder를 교체하고, 아니면 새 메시지로 전송
type placeholderReply struct {
	replier Replier
	editor  EditableReplier
	handle  string
}

func newPlaceholderReply(replier Replier, handle string) placeholderReply {
	p := placeholderReply{replier: replier, handle: handle}
	if editor, ok := replier.(EditableReplier); ok && handle != "" {
		p.editor = editor
	}
	return p
}

func (p placeholderReply) deliver(ctx context.Context, text string) error {
	if p.editor != nil {
		return p.editor.Update(ctx, p.handle, text)
	}
	_, err := p.replier.Send(ctx, text)
	return err
}
