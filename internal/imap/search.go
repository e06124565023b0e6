package imap

import (
	"fmt"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
)

// SearchUnseen returns the sequence numbers of all messages in the selected
// mailbox that do not carry the \Seen flag.
func SearchUnseen(c *client.Client) ([]uint32, error) {
	if c == nil {
		return nil, fmt.Errorf("client is nil")
	}

	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}

	seqNums, err := c.Search(criteria)
	if err != nil {
		return nil, fmt.Errorf("failed to search for unseen messages: %w", err)
	}

	return seqNums, nil
}

// NewestSeqNum returns the highest sequence number, i.e. the most recently
// arrived message. Servers usually return results sorted, but nothing in
// RFC 3501 requires it. Returns 0 for an empty slice.
func NewestSeqNum(seqNums []uint32) uint32 {
	var newest uint32
	for _, n := range seqNums {
		if n > newest {
			newest = n
		}
	}
	return newest
}
