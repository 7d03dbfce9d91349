package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/incident-comms/bot/internal/config"
	"github.com/incident-comms/bot/internal/model"
	"go.uber.org/zap"
)

// EnsureIncidentMessageSchema - incident_messages 테이블 생성 (없으면)
func (p *Postgres) EnsureIncidentMessageSchema(ctx context.Context) error {
	_, err := p.Pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS incident_messages (
			object_id        TEXT         PRIMARY KEY,
			incident_text    TEXT         NOT NULL,
			customer_message TEXT         NOT NULL,
			internal_message TEXT         NOT NULL,
			slack_user       TEXT         NOT NULL DEFAULT '',
			slack_channel    TEXT         NOT NULL DEFAULT '',
			source           TEXT         NOT NULL DEFAULT 'chat',
			created_at       TIMESTAMPTZ  NOT NULL DEFAULT NOW()
		);
	`)
	if err != nil {
		return fmt.Errorf("failed to create incident_messages table: %w", err)
	}
	return nil
}

// Backend - 메트릭/로그용 저장소 이름
func (p *Postgres) Backend() string {
	return config.StorePostgres
}

// SaveIncidentMessage - 장애 메시지 레코드 1건 저장 (중복 제거 없음)
func (p *Postgres) SaveIncidentMessage(ctx context.Context, record model.IncidentRecord) (*model.SavedRecord, error) {
	saved := &model.SavedRecord{ObjectID: uuid.NewString()}

	err := p.Pool.QueryRow(ctx, `
		INSERT INTO incident_messages
			(object_id, incident_text, customer_message, internal_message, slack_user, slack_channel, source, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		RETURNING created_at;
	`, saved.ObjectID, record.IncidentText, record.CustomerMessage, record.InternalMessage,
		record.User, record.Channel, record.Source).Scan(&saved.CreatedAt)
	if err != nil {
		p.logger.Warn("Error saving incident message to postgres",
			zap.String("user", record.User),
			zap.String("channel", record.Channel),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to insert incident message: %w", err)
	}
	return saved, nil
}
