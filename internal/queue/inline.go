package queue

import (
    "context"
    "log"
    "sync"
)

// Inline does the consumers' work in-process.  It is used when no broker
// is configured so that reset mail still goes out.  Mail is sent in the
// background so a reset request for a known address answers as fast as
// one for an unknown address; Wait blocks until pending mail is done.
type Inline struct {
    Mail  MailSender
    Audit *AuditLog

    pending sync.WaitGroup
}

func (n *Inline) PasswordReset(_ context.Context, m PasswordResetMail) error {
    n.pending.Add(1)
    go func() {
        defer n.pending.Done()
        if err := SendPasswordReset(n.Mail, m); err != nil {
            log.Printf("password reset mail to %s failed: %v", m.To, err)
        }
    }()
    return nil
}

func (n *Inline) ContentPublished(_ context.Context, ev ContentPublishedEvent) error {
    if n.Audit == nil {
        return nil
    }
    return n.Audit.Record(ev)
}

// Wait blocks until every mail handed to PasswordReset has been attempted.
func (n *Inline) Wait() {
    n.pending.Wait()
}
