package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"quicktasker/gig-service/internal/model"
)

// Messages accesses the messages collection.
type Messages struct {
	pool DB
}

// ListByJob returns the conversation of one job in creation order.
func (s *Messages) ListByJob(ctx context.Context, jobID string) ([]model.Message, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, job_id, sender_id, receiver_id, content, created_at
		 FROM messages
		 WHERE job_id = $1
		 ORDER BY created_at, id`,
		jobID,
	)
	if err != nil {
		return nil, fmt.Errorf("listMessages query: %w", err)
	}
	defer rows.Close()

	msgs := make([]model.Message, 0)
	for rows.Next() {
		var m model.Message
		if err := rows.Scan(&m.ID, &m.JobID, &m.SenderID, &m.ReceiverID, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("listMessages scan: %w", err)
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listMessages rows: %w", err)
	}
	return msgs, nil
}

// Insert stores msg and returns it with its id and timestamp.
func (s *Messages) Insert(ctx context.Context, msg model.Message) (model.Message, error) {
	msg.ID = uuid.NewString()
	err := s.pool.QueryRow(ctx,
		`INSERT INTO messages (id, job_id, sender_id, receiver_id, content)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING created_at`,
		msg.ID, msg.JobID, msg.SenderID, msg.ReceiverID, msg.Content,
	).Scan(&msg.CreatedAt)
	if err != nil {
		return model.Message{}, fmt.Errorf("insert message: %w", err)
	}
	return msg, nil
}
