// Command inspect analyzes a saved message (.eml) without IMAP or a database
// and prints the provenance report as JSON.
//
//	inspect message.eml
//	inspect < message.eml
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/vdavid/mailtrace/internal/imap"
	"github.com/vdavid/mailtrace/internal/logging"
	"github.com/vdavid/mailtrace/internal/models"
	"github.com/vdavid/mailtrace/internal/provenance"
)

// report is the printed analysis.
type report struct {
	Subject        string                  `json:"subject"`
	From           string                  `json:"from"`
	To             string                  `json:"to"`
	Date           time.Time               `json:"date"`
	Snippet        string                  `json:"snippet"`
	MessageID      string                  `json:"messageId"`
	ESP            models.ESP              `json:"esp"`
	Hops           int                     `json:"hops"`
	ReceivingChain []string                `json:"receivingChain"`
	HopSummaries   []provenance.HopSummary `json:"hopSummaries"`
}

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout); err != nil {
		logging.Component("inspect").WithError(err).Error("Inspection failed")
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout io.Writer) error {
	raw, err := readInput(args, stdin)
	if err != nil {
		return err
	}

	rec, err := imap.AnalyzeMessage(raw, time.Now())
	if err != nil {
		return err
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(buildReport(rec))
}

func readInput(args []string, stdin io.Reader) ([]byte, error) {
	switch len(args) {
	case 0:
		raw, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		return raw, nil
	case 1:
		raw, err := os.ReadFile(args[0])
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", args[0], err)
		}
		return raw, nil
	default:
		return nil, fmt.Errorf("usage: inspect [message.eml]")
	}
}

func buildReport(rec *models.EmailRecord) report {
	summaries := make([]provenance.HopSummary, 0, len(rec.ReceivingChain))
	for _, line := range rec.ReceivingChain {
		summaries = append(summaries, provenance.SummarizeHop(line))
	}

	return report{
		Subject:        rec.Subject,
		From:           rec.From,
		To:             rec.To,
		Date:           rec.Date,
		Snippet:        rec.Snippet,
		MessageID:      rec.MessageID,
		ESP:            rec.ESP,
		Hops:           rec.Hops,
		ReceivingChain: rec.ReceivingChain,
		HopSummaries:   summaries,
	}
}
