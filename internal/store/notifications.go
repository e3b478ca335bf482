package store

import (
	"fmt"

	"github.com/gravityboard/gravityd/internal/deadline"
	"github.com/gravityboard/gravityd/internal/notify"
)

// SaveNotification inserts a notification row.
// Implements notify.Store.
func (s *DB) SaveNotification(n *notify.Notification) error {
	_, err := s.db.Exec(`INSERT INTO notifications
		(id, task_id, threshold, title, body, fired_at, unread, delivered)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.TaskID, string(n.Threshold), n.Title, n.Body, n.FiredAt, n.Unread, n.Delivered)
	if err != nil {
		return fmt.Errorf("failed to insert notification: %w", err)
	}
	return nil
}

// UpdateNotification rewrites the read/delivery flags
func (s *DB) UpdateNotification(n *notify.Notification) error {
	res, err := s.db.Exec(`UPDATE notifications SET unread = ?, delivered = ? WHERE id = ?`,
		n.Unread, n.Delivered, n.ID)
	if err != nil {
		return fmt.Errorf("failed to update notification: %w", err)
	}
	if count, _ := res.RowsAffected(); count == 0 {
		return notify.ErrNotificationNotFound
	}
	return nil
}

// Notifications returns every stored notification
func (s *DB) Notifications() ([]*notify.Notification, error) {
	rows, err := s.db.Query(`SELECT id, task_id, threshold, title, body, fired_at, unread, delivered
		FROM notifications ORDER BY fired_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to query notifications: %w", err)
	}
	defer rows.Close()

	var items []*notify.Notification
	for rows.Next() {
		var n notify.Notification
		var threshold string
		if err := rows.Scan(&n.ID, &n.TaskID, &threshold, &n.Title, &n.Body,
			&n.FiredAt, &n.Unread, &n.Delivered); err != nil {
			return nil, err
		}
		n.Threshold = deadline.ThresholdKind(threshold)
		items = append(items, &n)
	}
	return items, rows.Err()
}
