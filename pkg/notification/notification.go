// Package notification delivers one message over several channels.
//
// A notification lists its channels in Via and implements the matching
// To* method for each:
//
//	func (n *OrderUpdate) Via() []string               { return []string{"mail", "slack"} }
//	func (n *OrderUpdate) ToMail() notification.MailData   { ... }
//	func (n *OrderUpdate) ToSlack() notification.SlackData { ... }
//
//	err := notification.Send(ctx, order.Email, n)
//
// Every channel is attempted; the failures are joined into the returned error.
package notification

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	pkghttp "github.com/shashiranjanraj/foodie/pkg/http"
	"github.com/shashiranjanraj/foodie/pkg/logger"
	"github.com/shashiranjanraj/foodie/pkg/mail"
)

const (
	Mail  = "mail"
	Slack = "slack"
)

type Notification interface {
	Via() []string
}

type MailData struct {
	// To overrides the address passed to Send.
	To      string
	Subject string
	HTML    string
	Text    string
}

type Mailable interface {
	ToMail() MailData
}

type SlackData struct {
	Text        string            `json:"text,omitempty"`
	Attachments []SlackAttachment `json:"attachments,omitempty"`
}

type SlackAttachment struct {
	Color  string `json:"color,omitempty"`
	Title  string `json:"title,omitempty"`
	Text   string `json:"text,omitempty"`
	Footer string `json:"footer,omitempty"`
}

type Slackable interface {
	ToSlack() SlackData
}

// Channel delivers a notification to one medium.
type Channel func(ctx context.Context, address string, n Notification) error

var (
	mu       sync.RWMutex
	channels = map[string]Channel{
		Mail:  viaMail,
		Slack: viaSlack,
	}
	slackWebhook string
)

// Register adds or replaces a channel.
func Register(name string, ch Channel) {
	mu.Lock()
	channels[name] = ch
	mu.Unlock()
}

// SetSlackWebhook sets the incoming webhook the slack channel posts to.
func SetSlackWebhook(url string) {
	mu.Lock()
	slackWebhook = url
	mu.Unlock()
}

func SlackConfigured() bool {
	mu.RLock()
	defer mu.RUnlock()
	return slackWebhook != ""
}

func Send(ctx context.Context, address string, n Notification) error {
	var errs []error
	for _, name := range n.Via() {
		mu.RLock()
		ch, ok := channels[name]
		mu.RUnlock()

		err := fmt.Errorf("notification: unknown channel %q", name)
		if ok {
			err = ch(ctx, address, n)
		}
		if err != nil {
			logger.WithCtx(ctx).Error("notification not delivered", "channel", name, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

func viaMail(_ context.Context, address string, n Notification) error {
	m, ok := n.(Mailable)
	if !ok {
		return fmt.Errorf("%T has no mail form", n)
	}
	d := m.ToMail()
	if d.To != "" {
		address = d.To
	}
	if address == "" {
		return errors.New("no recipient")
	}
	return mail.To(address).Subject(d.Subject).HTML(d.HTML).Text(d.Text).Send()
}

func viaSlack(ctx context.Context, _ string, n Notification) error {
	s, ok := n.(Slackable)
	if !ok {
		return fmt.Errorf("%T has no slack form", n)
	}
	mu.RLock()
	url := slackWebhook
	mu.RUnlock()
	if url == "" {
		return errors.New("slack webhook not configured")
	}

	resp, err := pkghttp.Post(url).JSON(s.ToSlack()).Timeout(5 * time.Second).Do(ctx)
	if err != nil {
		return err
	}
	if !resp.OK() {
		return fmt.Errorf("slack answered %d: %s", resp.StatusCode, resp.String())
	}
	return nil
}
