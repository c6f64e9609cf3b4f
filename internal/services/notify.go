package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/smtp"
	"strings"
	"time"

	"gorm.io/gorm"

	"server-tracker/internal/config"
	"server-tracker/internal/models"
)

// Notifier interface for different notification channels
type Notifier interface {
	Send(server *models.Server, subject, message string) error
}

// NotifyService fans an alert out to every enabled channel and records the
// delivery outcome
type NotifyService struct {
	db        *gorm.DB
	notifiers []Notifier
}

// NewNotifyService creates a new notification service. Admin emails always
// receive email alerts in addition to the channel's own recipient list.
func NewNotifyService(db *gorm.DB, cfg *config.NotificationsConfig, adminEmails []string) *NotifyService {
	service := &NotifyService{
		db:        db,
		notifiers: make([]Notifier, 0),
	}

	if cfg.Email.Enabled {
		service.notifiers = append(service.notifiers, NewEmailNotifier(&cfg.Email, adminEmails...))
	}

	if cfg.Webhook.Enabled {
		service.notifiers = append(service.notifiers, NewWebhookNotifier(&cfg.Webhook))
	}

	if cfg.Telegram.Enabled {
		service.notifiers = append(service.notifiers, NewTelegramNotifier(&cfg.Telegram))
	}

	return service
}

// NotifyRefreshFailure alerts the admins that one of a server's refresh
// units failed
func (s *NotifyService) NotifyRefreshFailure(server *models.Server, unit string, cause error) {
	subject := fmt.Sprintf("Refresh failed for server %s", server.Name)
	message := fmt.Sprintf("The %s refresh for server %s (%s) failed: %v\n\nStored data and timestamps were left untouched.",
		unit, server.Name, server.Address, cause)

	if err := s.Send(server, subject, message); err != nil {
		log.Printf("Failed to deliver refresh-failure alert for %s: %v", server.Name, err)
	}
}

// NotifyStaleData alerts the admins that a server's data has not refreshed
// within the expected window
func (s *NotifyService) NotifyStaleData(server *models.Server, category string, age time.Duration) {
	subject := fmt.Sprintf("Stale %s data for server %s", category, server.Name)
	message := fmt.Sprintf("Server %s (%s) has not refreshed its %s data for %s.",
		server.Name, server.Address, category, age.Round(time.Minute))

	if err := s.Send(server, subject, message); err != nil {
		log.Printf("Failed to deliver stale-data alert for %s: %v", server.Name, err)
	}
}

// Send delivers through all enabled channels. It succeeds when at least one
// channel accepted the message.
func (s *NotifyService) Send(server *models.Server, subject, message string) error {
	var lastErr error
	successCount := 0

	for _, notifier := range s.notifiers {
		notifierType := fmt.Sprintf("%T", notifier)
		if err := notifier.Send(server, subject, message); err != nil {
			log.Printf("%s notification failed: %v", notifierType, err)
			lastErr = err
			s.recordNotification(server, notifier, subject, "failed")
			continue
		}

		s.recordNotification(server, notifier, subject, "success")
		successCount++
	}

	if successCount > 0 {
		return nil
	}

	return lastErr
}

// recordNotification records the delivery attempt in the database
func (s *NotifyService) recordNotification(server *models.Server, notifier Notifier, content, status string) {
	if s.db == nil {
		return
	}

	notification := &models.Notification{
		ServerID: server.ID,
		Type:     fmt.Sprintf("%T", notifier),
		Content:  content,
		Status:   status,
		SentAt:   time.Now(),
	}

	s.db.Create(notification)
}

// EmailNotifier sends alerts over SMTP
type EmailNotifier struct {
	config *config.EmailConfig
	to     []string
}

// NewEmailNotifier creates a new email notifier. Extra recipients are merged
// into the configured list with duplicates removed.
func NewEmailNotifier(cfg *config.EmailConfig, extra ...string) *EmailNotifier {
	to := make([]string, 0, len(cfg.To)+len(extra))
	seen := make(map[string]bool, len(cfg.To)+len(extra))
	for _, addr := range append(append([]string{}, cfg.To...), extra...) {
		if addr == "" || seen[addr] {
			continue
		}
		seen[addr] = true
		to = append(to, addr)
	}
	return &EmailNotifier{config: cfg, to: to}
}

// Send sends an email notification
func (e *EmailNotifier) Send(server *models.Server, subject, message string) error {
	body := fmt.Sprintf("%s\n\nServer: %s\nAddress: %s\nPanel: %s\nTime: %s\n",
		message,
		server.Name,
		server.Address,
		server.WhmURL(),
		time.Now().Format("2006-01-02 15:04:05"),
	)

	msg := fmt.Sprintf("From: %s\r\n", e.config.From)
	msg += fmt.Sprintf("To: %s\r\n", strings.Join(e.to, ","))
	msg += fmt.Sprintf("Subject: %s\r\n", subject)
	msg += "Content-Type: text/plain; charset=UTF-8\r\n"
	msg += "\r\n"
	msg += body

	auth := smtp.PlainAuth("", e.config.From, e.config.Password, e.config.SMTPHost)

	addr := fmt.Sprintf("%s:%d", e.config.SMTPHost, e.config.SMTPPort)
	if err := smtp.SendMail(addr, auth, e.config.From, e.to, []byte(msg)); err != nil {
		// Some SMTP providers close the connection early even though the
		// message went out; don't treat that as a delivery failure.
		if !strings.Contains(err.Error(), "short response") {
			return fmt.Errorf("failed to send email: %w", err)
		}
	}

	return nil
}

// WebhookNotifier posts alerts to a configured URL
type WebhookNotifier struct {
	config *config.WebhookConfig
}

// NewWebhookNotifier creates a new webhook notifier
func NewWebhookNotifier(cfg *config.WebhookConfig) *WebhookNotifier {
	return &WebhookNotifier{config: cfg}
}

// Send posts a JSON payload describing the alert
func (w *WebhookNotifier) Send(server *models.Server, subject, message string) error {
	payload := map[string]interface{}{
		"server":  server.Name,
		"address": server.Address,
		"subject": subject,
		"message": message,
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	resp, err := http.Post(w.config.URL, "application/json", bytes.NewBuffer(jsonData))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	return nil
}

// TelegramNotifier sends alerts through the Telegram bot API
type TelegramNotifier struct {
	config *config.TelegramConfig
}

// NewTelegramNotifier creates a new Telegram notifier
func NewTelegramNotifier(cfg *config.TelegramConfig) *TelegramNotifier {
	return &TelegramNotifier{config: cfg}
}

// Send sends a Telegram message
func (t *TelegramNotifier) Send(server *models.Server, subject, message string) error {
	text := fmt.Sprintf("⚠️ %s\n\nServer: %s\nAddress: %s\n\n%s",
		subject, server.Name, server.Address, message)

	apiURL := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", t.config.BotToken)

	payload := map[string]interface{}{
		"chat_id": t.config.ChatID,
		"text":    text,
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	client := &http.Client{Timeout: 30 * time.Second}

	resp, err := client.Post(apiURL, "application/json", bytes.NewBuffer(jsonData))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram API returned status %d", resp.StatusCode)
	}

	return nil
}
