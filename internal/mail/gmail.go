// Package mail delivers budget alert emails through the Gmail API.
package mail

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmail "google.golang.org/api/gmail/v1"
	goption "google.golang.org/api/option"

	"fintrack/internal/core"
)

// Config carries the sender identity and OAuth credentials. Inline JSON takes
// precedence over file paths, matching how deployments pass secrets.
type Config struct {
	From       string
	To         string
	ClientFile string
	ClientJSON string
	TokenFile  string
	TokenJSON  string
}

type Sender struct {
	svc  *gmail.Service
	from string
	to   string
}

// NewSender builds a Gmail sender from OAuth client credentials and a
// previously issued token.
func NewSender(ctx context.Context, cfg Config) (*Sender, error) {
	if cfg.From == "" {
		return nil, errors.New("missing sender address")
	}
	if cfg.To == "" {
		return nil, errors.New("missing recipient address")
	}

	clientJSON, err := resolveCredential(cfg.ClientJSON, cfg.ClientFile, "OAuth client")
	if err != nil {
		return nil, err
	}
	tokenJSON, err := resolveCredential(cfg.TokenJSON, cfg.TokenFile, "OAuth token")
	if err != nil {
		return nil, err
	}

	oauthCfg, err := google.ConfigFromJSON(clientJSON, gmail.GmailSendScope)
	if err != nil {
		return nil, fmt.Errorf("oauth config: %w", err)
	}

	var token oauth2.Token
	if err := json.Unmarshal(tokenJSON, &token); err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	svc, err := gmail.NewService(ctx, goption.WithHTTPClient(oauthCfg.Client(ctx, &token)))
	if err != nil {
		return nil, fmt.Errorf("create gmail service: %w", err)
	}

	return &Sender{svc: svc, from: cfg.From, to: cfg.To}, nil
}

func resolveCredential(inline, file, what string) ([]byte, error) {
	switch {
	case inline != "":
		return []byte(inline), nil
	case file != "":
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read %s file: %w", what, err)
		}
		return b, nil
	default:
		return nil, fmt.Errorf("missing %s credentials", what)
	}
}

// SendBudgetAlerts emails one message covering every alert in the batch.
func (s *Sender) SendBudgetAlerts(ctx context.Context, userID string, alerts []core.Alert) error {
	if len(alerts) == 0 {
		return nil
	}

	subject := alertSubject(alerts)
	body := alertBody(userID, alerts)

	raw := buildMessage(s.from, s.to, subject, body)
	msg := &gmail.Message{Raw: base64.URLEncoding.EncodeToString([]byte(raw))}

	if _, err := s.svc.Users.Messages.Send("me", msg).Context(ctx).Do(); err != nil {
		return fmt.Errorf("send alert mail: %w", err)
	}
	return nil
}

func alertSubject(alerts []core.Alert) string {
	critical := 0
	for _, a := range alerts {
		if a.Level == core.AlertCritical {
			critical++
		}
	}
	if critical > 0 {
		return fmt.Sprintf("Budget alert: %d critical, %d warning", critical, len(alerts)-critical)
	}
	return fmt.Sprintf("Budget alert: %d warning(s)", len(alerts))
}

func alertBody(userID string, alerts []core.Alert) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Budget alerts for user %s:\r\n\r\n", userID)
	for _, a := range alerts {
		fmt.Fprintf(&b, "[%s] %s\r\n", strings.ToUpper(string(a.Level)), a.Message)
	}
	return b.String()
}

func buildMessage(from, to, subject, body string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	return b.String()
}
