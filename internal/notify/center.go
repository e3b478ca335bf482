package notify

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gravityboard/gravityd/internal/deadline"
	"github.com/gravityboard/gravityd/internal/logging"
)

// Notification is a deadline alert as the user sees it
type Notification struct {
	ID        string                 `json:"id"`
	TaskID    string                 `json:"task_id"`
	Threshold deadline.ThresholdKind `json:"threshold"`
	Title     string                 `json:"title"`
	Body      string                 `json:"body"`
	FiredAt   time.Time              `json:"fired_at"`
	Unread    bool                   `json:"unread"`
	Delivered bool                   `json:"delivered"` // pushed out by an effector
}

// ErrNotificationNotFound means the notification id is unknown
var ErrNotificationNotFound = errors.New("notification not found")

// Store persists notifications. Write-through; reads come from memory.
type Store interface {
	SaveNotification(n *Notification) error
	UpdateNotification(n *Notification) error
	Notifications() ([]*Notification, error)
}

// Center collects notification events and tracks read/delivery state.
// It is the deadline scheduler's sink and the effectors' queue.
type Center struct {
	mu    sync.RWMutex
	items map[string]*Notification
	store Store // optional
}

// NewCenter creates an empty notification center
func NewCenter(store Store) *Center {
	return &Center{
		items: make(map[string]*Notification),
		store: store,
	}
}

// Load restores persisted notifications into memory
func (c *Center) Load() error {
	if c.store == nil {
		return nil
	}
	items, err := c.store.Notifications()
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, n := range items {
		c.items[n.ID] = n
	}
	return nil
}

// Notify records a deadline event as an unread notification.
// Implements deadline.Sink.
func (c *Center) Notify(ev deadline.Event) {
	n := &Notification{
		ID:        uuid.NewString(),
		TaskID:    ev.TaskID,
		Threshold: ev.Threshold,
		Title:     ev.Title,
		Body:      ev.Body,
		FiredAt:   ev.FiredAt,
		Unread:    true,
	}

	c.mu.Lock()
	c.items[n.ID] = n
	c.mu.Unlock()

	if c.store != nil {
		if err := c.store.SaveNotification(n); err != nil {
			logging.Warn("notify", "Failed to persist notification %s: %v", n.ID, err)
		}
	}
	logging.Info("notify", "%s (%s)", n.Title, logging.Truncate(n.Body, 60))
}

// List returns notifications newest-first, optionally only unread ones
func (c *Center) List(unreadOnly bool) []*Notification {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make([]*Notification, 0, len(c.items))
	for _, n := range c.items {
		if unreadOnly && !n.Unread {
			continue
		}
		snap := *n
		result = append(result, &snap)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].FiredAt.After(result[j].FiredAt)
	})
	return result
}

// UnreadCount returns the number of unread notifications
func (c *Center) UnreadCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	count := 0
	for _, n := range c.items {
		if n.Unread {
			count++
		}
	}
	return count
}

// MarkRead clears the unread flag on one notification
func (c *Center) MarkRead(id string) error {
	c.mu.Lock()
	n, ok := c.items[id]
	if !ok {
		c.mu.Unlock()
		return ErrNotificationNotFound
	}
	n.Unread = false
	snap := *n
	c.mu.Unlock()

	if c.store != nil {
		return c.store.UpdateNotification(&snap)
	}
	return nil
}

// MarkAllRead clears every unread flag and returns how many changed
func (c *Center) MarkAllRead() int {
	c.mu.Lock()
	var changed []*Notification
	for _, n := range c.items {
		if n.Unread {
			n.Unread = false
			snap := *n
			changed = append(changed, &snap)
		}
	}
	c.mu.Unlock()

	for _, n := range changed {
		if c.store != nil {
			if err := c.store.UpdateNotification(n); err != nil {
				logging.Warn("notify", "Failed to persist read flag for %s: %v", n.ID, err)
			}
		}
	}
	return len(changed)
}

// PendingDelivery returns notifications no effector has pushed yet,
// oldest first
func (c *Center) PendingDelivery() []*Notification {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var result []*Notification
	for _, n := range c.items {
		if !n.Delivered {
			snap := *n
			result = append(result, &snap)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].FiredAt.Before(result[j].FiredAt)
	})
	return result
}

// MarkDelivered records that an effector pushed the notification
func (c *Center) MarkDelivered(id string) {
	c.mu.Lock()
	n, ok := c.items[id]
	if ok {
		n.Delivered = true
	}
	var snap Notification
	if ok {
		snap = *n
	}
	c.mu.Unlock()

	if ok && c.store != nil {
		if err := c.store.UpdateNotification(&snap); err != nil {
			logging.Warn("notify", "Failed to persist delivery flag for %s: %v", id, err)
		}
	}
}
