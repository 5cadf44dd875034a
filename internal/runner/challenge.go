package runner

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-message/mail"
	"github.com/ternarybob/arbor"

	"github.com/SamiESK/insta-scrapper/internal/common"
)

// Login challenges arrive as a security-code email. The reader polls the
// configured mailbox until a fresh code shows up or the window closes.

var codePattern = regexp.MustCompile(`\b([0-9]{6})\b`)

const challengePollInterval = 10 * time.Second

// CodeReader retrieves login verification codes from an IMAP mailbox
type CodeReader struct {
	config common.IMAPConfig
	logger arbor.ILogger
}

// NewCodeReader creates a reader over the configured mailbox
func NewCodeReader(config common.IMAPConfig, logger arbor.ILogger) *CodeReader {
	return &CodeReader{config: config, logger: logger}
}

// Configured reports whether challenge resolution is available. Without a
// mailbox a challenge is terminal for the run.
func (r *CodeReader) Configured() bool {
	return r.config.Server != "" && r.config.Username != "" && r.config.Password != ""
}

// WaitForCode polls the mailbox until a verification code arrives. Only mail
// received after the call started is considered, so a stale code from an
// earlier challenge is never replayed.
func (r *CodeReader) WaitForCode(ctx context.Context) (string, error) {
	if !r.Configured() {
		return "", fmt.Errorf("imap mailbox not configured")
	}

	since := time.Now().Add(-1 * time.Minute)
	timeout := common.ParseDuration(r.config.Timeout, 90*time.Second)
	deadline := time.Now().Add(timeout)

	r.logger.Info().
		Str("server", r.config.Server).
		Dur("timeout", timeout).
		Msg("Waiting for verification code email")

	for time.Now().Before(deadline) {
		code, err := r.fetchCode(since)
		if err != nil {
			r.logger.Warn().Err(err).Msg("Mailbox poll failed, will retry")
		} else if code != "" {
			return code, nil
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(challengePollInterval):
		}
	}
	return "", fmt.Errorf("no verification code arrived within %s", timeout)
}

// fetchCode makes one pass over unseen mail received since the cutoff
func (r *CodeReader) fetchCode(since time.Time) (string, error) {
	c, err := client.DialTLS(r.config.Server, nil)
	if err != nil {
		return "", fmt.Errorf("failed to connect to IMAP server: %w", err)
	}
	defer c.Logout()

	if err := c.Login(r.config.Username, r.config.Password); err != nil {
		return "", fmt.Errorf("IMAP login failed: %w", err)
	}

	mailbox := r.config.Mailbox
	if mailbox == "" {
		mailbox = "INBOX"
	}
	mbox, err := c.Select(mailbox, false)
	if err != nil {
		return "", fmt.Errorf("failed to select %s: %w", mailbox, err)
	}
	if mbox.Messages == 0 {
		return "", nil
	}

	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}
	criteria.Since = since

	seqNums, err := c.Search(criteria)
	if err != nil {
		return "", fmt.Errorf("failed to search for unseen messages: %w", err)
	}
	if len(seqNums) == 0 {
		return "", nil
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(seqNums...)

	messages := make(chan *imap.Message, len(seqNums))
	section := &imap.BodySectionName{}

	done := make(chan error, 1)
	go func() {
		done <- c.Fetch(seqSet, []imap.FetchItem{imap.FetchEnvelope, section.FetchItem()}, messages)
	}()

	var code string
	for msg := range messages {
		if msg == nil || msg.Envelope == nil {
			continue
		}
		if msg.Envelope.Date.Before(since) {
			continue
		}
		if found := extractCode(msg.Envelope.Subject, r.messageBody(msg, section)); found != "" {
			code = found
		}
	}

	if err := <-done; err != nil {
		return "", fmt.Errorf("failed to fetch messages: %w", err)
	}
	return code, nil
}

// messageBody pulls the text/plain part out of a fetched message; failures
// degrade to an empty body since the subject often carries the code anyway
func (r *CodeReader) messageBody(msg *imap.Message, section *imap.BodySectionName) string {
	body := msg.GetBody(section)
	if body == nil {
		return ""
	}
	mr, err := mail.CreateReader(body)
	if err != nil {
		return ""
	}
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return ""
		}
		if h, ok := p.Header.(*mail.InlineHeader); ok {
			contentType, _, _ := h.ContentType()
			if strings.HasPrefix(contentType, "text/plain") {
				b, err := io.ReadAll(p.Body)
				if err != nil {
					return ""
				}
				return string(b)
			}
		}
	}
	return ""
}

// extractCode finds a six-digit code in the subject first, then the body
func extractCode(subject, body string) string {
	for _, text := range []string{subject, body} {
		if m := codePattern.FindStringSubmatch(text); m != nil {
			return m[1]
		}
	}
	return ""
}
