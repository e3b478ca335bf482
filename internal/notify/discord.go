package notify

import (
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/gravityboard/gravityd/internal/logging"
)

// DefaultDeliveryPollInterval is how often the effector checks for
// undelivered notifications
const DefaultDeliveryPollInterval = 2 * time.Second

// DiscordEffector pushes pending notifications to a Discord channel.
// Delivery is fire-and-forget from the scheduler's point of view: the
// center queues, the effector drains.
type DiscordEffector struct {
	session      *discordgo.Session
	channelID    string
	center       *Center
	pollInterval time.Duration

	stopChan chan struct{}
	stopOnce sync.Once
}

// NewDiscordEffector creates a Discord delivery effector
func NewDiscordEffector(token, channelID string, center *Center) (*DiscordEffector, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}
	return &DiscordEffector{
		session:      session,
		channelID:    channelID,
		center:       center,
		pollInterval: DefaultDeliveryPollInterval,
		stopChan:     make(chan struct{}),
	}, nil
}

// Start opens the Discord session and begins draining the center
func (e *DiscordEffector) Start() error {
	if err := e.session.Open(); err != nil {
		return fmt.Errorf("failed to open discord session: %w", err)
	}
	go e.pollLoop()
	logging.Info("discord", "Effector started on channel %s", e.channelID)
	return nil
}

// Stop halts delivery and closes the session. Safe to call more than
// once.
func (e *DiscordEffector) Stop() {
	e.stopOnce.Do(func() {
		close(e.stopChan)
		if err := e.session.Close(); err != nil {
			logging.Warn("discord", "Session close: %v", err)
		}
	})
}

func (e *DiscordEffector) pollLoop() {
	ticker := time.NewTicker(e.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.stopChan:
			return
		case <-ticker.C:
			e.deliverPending()
		}
	}
}

func (e *DiscordEffector) deliverPending() {
	for _, n := range e.center.PendingDelivery() {
		content := fmt.Sprintf("**%s**\n%s", n.Title, n.Body)
		if _, err := e.session.ChannelMessageSend(e.channelID, content); err != nil {
			logging.Warn("discord", "Failed to deliver %s: %v", n.ID, err)
			continue
		}
		e.center.MarkDelivered(n.ID)
		logging.Debug("discord", "Delivered notification %s", n.ID)
	}
}
