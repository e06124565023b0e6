package provenance

import (
	"strings"

	"github.com/vdavid/mailtrace/internal/models"
)

// espRule maps a From-text substring to a provider label.
type espRule struct {
	needle string
	esp    models.ESP
}

// espRules is evaluated top to bottom; the first match wins.
var espRules = []espRule{
	{needle: "gmail.com", esp: models.ESPGmail},
	{needle: "outlook.com", esp: models.ESPOutlook},
	{needle: "zoho.com", esp: models.ESPZoho},
	{needle: "amazonses.com", esp: models.ESPAmazonSES},
}

// ClassifyESP guesses the sending provider from the decoded From header text.
// It is a plain substring heuristic: it trusts whatever the sender put in
// From, so a spoofed header yields a wrong label. Treat the result as
// informational only. Matching is case-insensitive, so "GMAIL.COM" also
// yields Gmail.
func ClassifyESP(from string) models.ESP {
	lower := strings.ToLower(from)
	for _, rule := range espRules {
		if strings.Contains(lower, rule.needle) {
			return rule.esp
		}
	}
	return models.ESPUnknown
}

// KnownESPs returns every label ClassifyESP can produce, in priority order,
// followed by ESPUnknown.
func KnownESPs() []models.ESP {
	labels := make([]models.ESP, 0, len(espRules)+1)
	for _, rule := range espRules {
		labels = append(labels, rule.esp)
	}
	return append(labels, models.ESPUnknown)
}
