package conversation

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/supportflow/backend/internal/models"
)

type PostgresRepo struct {
	db *pgxpool.Pool
}

func NewPostgresRepo(db *pgxpool.Pool) *PostgresRepo {
	return &PostgresRepo{db: db}
}

const convCols = "id, tenant_id, channel, customer_identifier, customer_name, status, created_at, updated_at"

func scanConv(row pgx.Row) (*models.Conversation, error) {
	var c models.Conversation
	err := row.Scan(&c.ID, &c.TenantID, &c.Channel, &c.CustomerIdentifier, &c.CustomerName,
		&c.Status, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan conversation: %w", err)
	}
	return &c, nil
}

func (r *PostgresRepo) Create(ctx context.Context, conv *models.Conversation) error {
	if conv.ID == uuid.Nil {
		conv.ID = uuid.New()
	}
	if conv.Status == "" {
		conv.Status = models.ConvStatusActive
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO conversations (id, tenant_id, channel, customer_identifier, customer_name, status)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		conv.ID, conv.TenantID, conv.Channel, conv.CustomerIdentifier, conv.CustomerName, conv.Status,
	)
	if err != nil {
		return fmt.Errorf("insert conversation: %w", err)
	}
	return nil
}

func (r *PostgresRepo) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*models.Conversation, error) {
	return scanConv(r.db.QueryRow(ctx,
		"SELECT "+convCols+" FROM conversations WHERE id = $1 AND tenant_id = $2", id, tenantID))
}

func (r *PostgresRepo) FindLatestByCustomer(ctx context.Context, tenantID uuid.UUID, channel, customerIdentifier string) (*models.Conversation, error) {
	return scanConv(r.db.QueryRow(ctx,
		`SELECT `+convCols+` FROM conversations
		 WHERE tenant_id = $1 AND channel = $2 AND customer_identifier = $3
		 ORDER BY created_at DESC LIMIT 1`,
		tenantID, channel, customerIdentifier))
}

func (r *PostgresRepo) List(ctx context.Context, tenantID uuid.UUID) ([]*models.Conversation, error) {
	rows, err := r.db.Query(ctx,
		"SELECT "+convCols+" FROM conversations WHERE tenant_id = $1 ORDER BY updated_at DESC", tenantID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	var convs []*models.Conversation
	for rows.Next() {
		c, err := scanConv(rows)
		if err != nil {
			return nil, err
		}
		convs = append(convs, c)
	}
	return convs, rows.Err()
}

func (r *PostgresRepo) UpdateStatus(ctx context.Context, tenantID, id uuid.UUID, status string) error {
	tag, err := r.db.Exec(ctx,
		"UPDATE conversations SET status = $1, updated_at = now() WHERE id = $2 AND tenant_id = $3",
		status, id, tenantID,
	)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepo) AppendMessage(ctx context.Context, msg *models.Message) error {
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	chunkIDs := msg.SourceChunkIDs
	if chunkIDs == nil {
		chunkIDs = []uuid.UUID{}
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO messages (id, conversation_id, role, content, source_chunk_ids, metadata)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		msg.ID, msg.ConversationID, msg.Role, msg.Content, chunkIDs, msg.Metadata,
	)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	_, err = r.db.Exec(ctx,
		"UPDATE conversations SET updated_at = now() WHERE id = $1", msg.ConversationID)
	if err != nil {
		return fmt.Errorf("touch conversation: %w", err)
	}
	return nil
}

func (r *PostgresRepo) ListMessages(ctx context.Context, conversationID uuid.UUID) ([]*models.Message, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, conversation_id, role, content, source_chunk_ids, metadata, created_at
		 FROM messages WHERE conversation_id = $1 ORDER BY created_at, id`,
		conversationID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var msgs []*models.Message
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &m.SourceChunkIDs, &m.Metadata, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msgs = append(msgs, &m)
	}
	return msgs, rows.Err()
}
