package queue

import (
    "context"
    "encoding/json"
    "fmt"
    "os"
    "path/filepath"
    "sync"
    "time"
)

// MailSender delivers one plain-text message.
type MailSender interface {
    Send(to, subject, body string) error
}

// PasswordResetHandler decodes a PasswordResetMail and sends it.
func PasswordResetHandler(m MailSender) HandlerFunc {
    return func(_ context.Context, body []byte) error {
        var msg PasswordResetMail
        if err := json.Unmarshal(body, &msg); err != nil {
            return fmt.Errorf("unmarshal: %w", err)
        }
        return SendPasswordReset(m, msg)
    }
}

// SendPasswordReset renders and sends the reset email.
func SendPasswordReset(m MailSender, msg PasswordResetMail) error {
    text := fmt.Sprintf("A password reset was requested for your account.\n\n"+
        "Open the link below to choose a new password:\n%s\n\n"+
        "The link expires at %s (UTC). If you did not ask for this, ignore this email.\n",
        msg.Link, msg.ExpiresAt.UTC().Format(time.RFC1123))
    return m.Send(msg.To, "Password reset", text)
}

// AuditLog appends one line per published item to a file, e.g.
// logs/content.log.
type AuditLog struct {
    Path string
    mu   sync.Mutex
}

func NewAuditLog(path string) *AuditLog { return &AuditLog{Path: path} }

// Handler decodes a ContentPublishedEvent and records it.
func (a *AuditLog) Handler() HandlerFunc {
    return func(_ context.Context, body []byte) error {
        var ev ContentPublishedEvent
        if err := json.Unmarshal(body, &ev); err != nil {
            return fmt.Errorf("unmarshal: %w", err)
        }
        return a.Record(ev)
    }
}

// Record writes ev to the audit file, creating its directory if needed.
func (a *AuditLog) Record(ev ContentPublishedEvent) error {
    a.mu.Lock()
    defer a.mu.Unlock()

    if err := os.MkdirAll(filepath.Dir(a.Path), 0o755); err != nil {
        return fmt.Errorf("mkdir logs: %w", err)
    }
    f, err := os.OpenFile(a.Path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
    if err != nil {
        return fmt.Errorf("open log file: %w", err)
    }
    defer f.Close()

    line := fmt.Sprintf("[%s] %s published | id=%d | title=%q | created_by=%d | published_by=%d\n",
        ev.PublishedAt.UTC().Format(time.RFC3339), ev.Kind, ev.ID, ev.Title, ev.CreatedBy, ev.PublishedBy)
    if _, err := f.WriteString(line); err != nil {
        return fmt.Errorf("write log: %w", err)
    }
    return nil
}
