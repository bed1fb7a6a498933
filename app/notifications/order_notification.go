// Package notifications holds the customer and kitchen messages sent for
// order events.
package notifications

import (
	"fmt"
	"html/template"
	"strings"

	"github.com/shashiranjanraj/foodie/app/events"
	"github.com/shashiranjanraj/foodie/app/models"
	"github.com/shashiranjanraj/foodie/pkg/notification"
)

// OrderUpdate tells the customer what happened to their order and, for new
// orders, pings the kitchen channel.
type OrderUpdate struct {
	Event string
	Order *models.Order

	MailEnabled  bool
	SlackEnabled bool
}

func (n *OrderUpdate) Via() []string {
	var via []string
	if n.MailEnabled && n.Order.Email != "" {
		via = append(via, notification.Mail)
	}
	if n.SlackEnabled && n.Event == events.OrderCreated {
		via = append(via, notification.Slack)
	}
	return via
}

func (n *OrderUpdate) subject() string {
	short := shortID(n.Order.ID)
	switch n.Event {
	case events.OrderCreated:
		return "We received your order #" + short
	case events.OrderPaid:
		return "Payment received for order #" + short
	case events.OrderCancelled:
		return "Your order #" + short + " was cancelled"
	}
	return fmt.Sprintf("Your order #%s is now %s", short, strings.ReplaceAll(string(n.Order.Status), "_", " "))
}

var mailBody = template.Must(template.New("order").Parse(`<h2>{{.Heading}}</h2>
<p>Hi {{.Order.FirstName}},</p>
<table>
{{range .Order.Lines}}<tr><td>{{.Quantity}} × {{.Name}}</td><td>{{.Price.StringFixed 2}}</td></tr>
{{end}}</table>
<p>Total: <strong>{{.Order.Total.StringFixed 2}}</strong> ({{.Order.PaymentMethod}}, {{.Order.PaymentStatus}})</p>
<p>Status: {{.Order.Status}}</p>`))

func (n *OrderUpdate) ToMail() notification.MailData {
	var html strings.Builder
	_ = mailBody.Execute(&html, map[string]any{"Heading": n.subject(), "Order": n.Order})

	text := []string{"Hi " + n.Order.FirstName + ",", "", n.subject() + "."}
	for _, l := range n.Order.Lines {
		text = append(text, fmt.Sprintf("  %d x %s  %s", l.Quantity, l.Name, l.Price.StringFixed(2)))
	}
	text = append(text, "", "Total: "+n.Order.Total.StringFixed(2), "Status: "+string(n.Order.Status))

	return notification.MailData{
		To:      n.Order.Email,
		Subject: n.subject(),
		HTML:    html.String(),
		Text:    strings.Join(text, "\n"),
	}
}

func (n *OrderUpdate) ToSlack() notification.SlackData {
	var lines []string
	for _, l := range n.Order.Lines {
		lines = append(lines, fmt.Sprintf("%d × %s", l.Quantity, l.Name))
	}
	return notification.SlackData{
		Text: fmt.Sprintf("New %s order #%s for %s %s", n.Order.PaymentMethod, shortID(n.Order.ID), n.Order.FirstName, n.Order.LastName),
		Attachments: []notification.SlackAttachment{{
			Color:  "good",
			Title:  "Total " + n.Order.Total.StringFixed(2),
			Text:   strings.Join(lines, "\n"),
			Footer: n.Order.Address + ", " + n.Order.City,
		}},
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
