package imap

import (
	"bufio"
	"bytes"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/emersion/go-message"
	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-message/textproto"
	"github.com/jhillyerd/enmime"
	"github.com/vdavid/mailtrace/internal/models"
)

// snippetLength is the number of characters of body text kept in a record.
const snippetLength = 200

// ParsedMessage is the structured view of a raw RFC 5322 message.
type ParsedMessage struct {
	Subject   string
	From      string
	To        string
	MessageID string
	// Date is zero and HasDate false when the Date header is missing or invalid.
	Date    time.Time
	HasDate bool
	// Text is the decoded text/plain body. It is empty for HTML-only messages.
	Text    string
	Headers []models.HeaderLine
}

// ParseMessage parses a complete raw message. An empty input or a header
// block that cannot be read is a parse error; a sloppy MIME body is not.
func ParseMessage(raw []byte) (*ParsedMessage, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, fmt.Errorf("%w: message is empty", ErrParse)
	}

	header, lines, err := readHeaderLines(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParse, err)
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: message has no header fields", ErrParse)
	}

	envelope, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse MIME structure: %w", ErrParse, err)
	}

	msg := &ParsedMessage{
		Subject: envelope.GetHeader("Subject"),
		From:    envelope.GetHeader("From"),
		To:      envelope.GetHeader("To"),
		Text:    plainText(envelope),
		Headers: lines,
	}

	mailHeader := mail.Header{Header: message.Header{Header: header}}
	if date, err := mailHeader.Date(); err == nil && !date.IsZero() {
		msg.Date = date
		msg.HasDate = true
	}
	if id, err := mailHeader.MessageID(); err == nil {
		msg.MessageID = id
	}

	return msg, nil
}

// readHeaderLines reads the header block and returns every field in message
// order with its raw text (folding kept, trailing CRLF removed).
func readHeaderLines(raw []byte) (textproto.Header, []models.HeaderLine, error) {
	header, err := textproto.ReadHeader(bufio.NewReader(bytes.NewReader(raw)))
	if err != nil {
		return header, nil, fmt.Errorf("failed to read header block: %w", err)
	}

	lines := make([]models.HeaderLine, 0, header.Len())
	fields := header.Fields()
	for fields.Next() {
		line := fields.Key() + ": " + fields.Value()
		if rawField, err := fields.Raw(); err == nil {
			line = strings.TrimRight(string(rawField), "\r\n")
		}
		lines = append(lines, models.HeaderLine{
			Key:  strings.ToLower(fields.Key()),
			Line: line,
		})
	}

	return header, lines, nil
}

// plainText returns the text/plain body. enmime down-converts HTML into
// Text when no plain part exists; that text is dropped here.
func plainText(envelope *enmime.Envelope) string {
	if envelope.HTML != "" && !hasPlainTextPart(envelope.Root) {
		return ""
	}
	return envelope.Text
}

func hasPlainTextPart(root *enmime.Part) bool {
	if root == nil {
		return false
	}
	match := root.BreadthMatchFirst(func(p *enmime.Part) bool {
		return p.ContentType == "text/plain" && !strings.EqualFold(p.Disposition, "attachment")
	})
	return match != nil
}

// Snippet returns the first 200 characters (runes) of text.
func Snippet(text string) string {
	if utf8.RuneCountInString(text) <= snippetLength {
		return text
	}
	count := 0
	for i := range text {
		if count == snippetLength {
			return text[:i]
		}
		count++
	}
	return text
}
