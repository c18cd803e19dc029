package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/cotah/tuxeai-app/storage"
)

const conversationColumns = `id, restaurant_id, customer_id, channel, status, last_message_at, created_at`

const messageColumns = `id, conversation_id, direction, content, message_type,
	COALESCE(agent_key, ''), COALESCE(external_id, ''), COALESCE(status, ''), created_at`

const (
	getConversationQuery = `SELECT ` + conversationColumns + ` FROM conversations WHERE restaurant_id = ? AND id = ?`

	getOpenConversationQuery = `SELECT ` + conversationColumns + ` FROM conversations WHERE open_key = ?`

	createOpenConversationQuery = `
		INSERT INTO conversations (restaurant_id, customer_id, channel, status, open_key, last_message_at)
		VALUES (?, ?, ?, ?, ?, ?)`

	createMessageQuery = `
		INSERT INTO messages (conversation_id, direction, content, message_type, agent_key, external_id, status)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	touchConversationQuery = `UPDATE conversations SET last_message_at = ? WHERE id = ?`

	listRecentMessagesQuery = `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE conversation_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?`
)

// openKey identifies the single open conversation per customer and channel.
func openKey(restaurantID, customerID int64, channel string) string {
	return strconv.FormatInt(restaurantID, 10) + ":" + strconv.FormatInt(customerID, 10) + ":" + channel
}

func (s *SQLStore) GetConversation(ctx context.Context, restaurantID, id int64) (*storage.Conversation, error) {
	c, err := scanConversation(s.queryRow(ctx, getConversationQuery, restaurantID, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation %d: %w", id, err)
	}
	return c, nil
}

func (s *SQLStore) GetOrCreateOpenConversation(ctx context.Context, restaurantID, customerID int64, channel string) (*storage.Conversation, error) {
	key := openKey(restaurantID, customerID, channel)

	c, err := scanConversation(s.queryRow(ctx, getOpenConversationQuery, key))
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to look up open conversation: %w", err)
	}

	// A concurrent caller may insert the same key between the lookup and the
	// insert; the conflict is ignored and the winner's row is read back.
	insert := s.dialect.insertIgnore(createOpenConversationQuery, "open_key")
	if _, err := s.exec(ctx, insert,
		restaurantID, customerID, channel, storage.ConversationOpen, key, time.Now().UTC(),
	); err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}

	c, err = scanConversation(s.queryRow(ctx, getOpenConversationQuery, key))
	if err != nil {
		return nil, fmt.Errorf("failed to read created conversation: %w", err)
	}
	return c, nil
}

func (s *SQLStore) CreateMessage(ctx context.Context, msg *storage.Message) (int64, error) {
	messageType := msg.MessageType
	if messageType == "" {
		messageType = "text"
	}
	status := msg.Status
	if status == "" {
		status = "sent"
	}

	var id int64
	err := s.trm.Do(ctx, func(ctx context.Context) error {
		var err error
		id, err = s.insert(ctx, createMessageQuery,
			msg.ConversationID,
			msg.Direction,
			msg.Content,
			messageType,
			nullString(msg.AgentKey),
			nullString(msg.ExternalID),
			status,
		)
		if err != nil {
			return err
		}
		_, err = s.exec(ctx, touchConversationQuery, time.Now().UTC(), msg.ConversationID)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to create message: %w", err)
	}
	msg.ID = id
	return id, nil
}

func (s *SQLStore) ListRecentMessages(ctx context.Context, conversationID int64, limit int) ([]storage.Message, error) {
	rows, err := s.query(ctx, listRecentMessagesQuery, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var out []storage.Message
	for rows.Next() {
		var m storage.Message
		if err := rows.Scan(
			&m.ID,
			&m.ConversationID,
			&m.Direction,
			&m.Content,
			&m.MessageType,
			&m.AgentKey,
			&m.ExternalID,
			&m.Status,
			&m.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error reading message rows: %w", err)
	}

	// newest first from the query; callers want chronological order
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func scanConversation(row scanner) (*storage.Conversation, error) {
	var (
		c    storage.Conversation
		last sql.NullTime
	)
	if err := row.Scan(&c.ID, &c.RestaurantID, &c.CustomerID, &c.Channel, &c.Status, &last, &c.CreatedAt); err != nil {
		return nil, err
	}
	c.LastMessageAt = timePtr(last)
	return &c, nil
}
