package imap

import (
	"bytes"
	"fmt"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
)

// FetchRawMessage fetches the complete RFC 5322 message with the given
// sequence number using BODY.PEEK[] so its \Seen flag is left alone.
// The whole literal is read into one buffer before returning; on any error
// the partial buffer is dropped.
func FetchRawMessage(c *client.Client, seqNum uint32) ([]byte, error) {
	if c == nil {
		return nil, fmt.Errorf("client is nil")
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(seqNum)

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{section.FetchItem()}

	messages := make(chan *imap.Message, 1)
	done := make(chan error, 1)

	go func() {
		done <- c.Fetch(seqSet, items, messages)
	}()

	var buf bytes.Buffer
	var found bool
	var readErr error
	// Keep draining until the channel is closed, otherwise the fetch goroutine blocks.
	for msg := range messages {
		if found || msg.SeqNum != seqNum {
			continue
		}
		for _, literal := range msg.Body {
			if literal == nil {
				continue
			}
			found = true
			if _, err := buf.ReadFrom(literal); err != nil {
				readErr = err
			}
			break
		}
	}

	if err := <-done; err != nil {
		return nil, fmt.Errorf("failed to fetch message %d: %w", seqNum, err)
	}

	if readErr != nil {
		return nil, fmt.Errorf("failed to read body of message %d: %w", seqNum, readErr)
	}

	if !found {
		return nil, fmt.Errorf("server did not return a body for message %d", seqNum)
	}

	return buf.Bytes(), nil
}
