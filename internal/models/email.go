package models

import (
	"strings"
	"time"
)

// ESP is the email service provider label attached to a record.
type ESP string

const (
	ESPGmail     ESP = "Gmail"
	ESPOutlook   ESP = "Outlook"
	ESPZoho      ESP = "Zoho"
	ESPAmazonSES ESP = "Amazon SES"
	ESPUnknown   ESP = "Unknown"
)

// HeaderLine is one header field as it appeared in the message.
// Key is the lowercase field name, Line is the raw field including its name.
type HeaderLine struct {
	Key  string
	Line string
}

// EmailRecord is the result of ingesting one unread message.
// Hops is always len(ReceivingChain).
type EmailRecord struct {
	ID             string    `json:"id"`
	Subject        string    `json:"subject"`
	From           string    `json:"from"`
	To             string    `json:"to"`
	Date           time.Time `json:"date"`
	Snippet        string    `json:"snippet"`
	ReceivingChain []string  `json:"receivingChain"`
	ESP            ESP       `json:"esp"`
	Hops           int       `json:"hops"`
	MessageID      string    `json:"messageId"`
	Raw            []byte    `json:"-"`
	CreatedAt      time.Time `json:"createdAt"`
}

// CleanText makes s storable as Postgres TEXT: invalid UTF-8 runs become
// U+FFFD and NUL bytes are dropped.
func CleanText(s string) string {
	s = strings.ToValidUTF8(s, "\uFFFD")
	return strings.ReplaceAll(s, "\x00", "")
}

// Sanitize applies CleanText to every text field and chain line in place.
// Raw is left untouched.
func (r *EmailRecord) Sanitize() {
	r.Subject = CleanText(r.Subject)
	r.From = CleanText(r.From)
	r.To = CleanText(r.To)
	r.Snippet = CleanText(r.Snippet)
	r.MessageID = CleanText(r.MessageID)
	for i, line := range r.ReceivingChain {
		r.ReceivingChain[i] = CleanText(line)
	}
}
