package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vdavid/mailtrace/internal/imap"
	"github.com/vdavid/mailtrace/internal/models"
	"github.com/vdavid/mailtrace/internal/testutil"
)

func TestSampleMessage(t *testing.T) {
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	rec, err := imap.AnalyzeMessage(sampleMessage(now), now)
	require.NoError(t, err)

	assert.Equal(t, models.ESPGmail, rec.ESP)
	assert.Equal(t, 1, rec.Hops)
	assert.True(t, rec.Date.Equal(now))
}

func TestSendSampleThroughRelay(t *testing.T) {
	imapServer := testutil.NewTestIMAPServer(t)
	relay := testutil.NewTestSMTPRelay(t, imapServer)

	require.NoError(t, sendSample(relay))

	assert.Equal(t, 1, imapServer.UnseenCount(t))
	messages := relay.GetMessages()
	require.Len(t, messages, 1)

	rec, err := imap.AnalyzeMessage(messages[0].Data, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 2, rec.Hops)
	assert.Contains(t, rec.ReceivingChain[0], testutil.RelayHostname)
}
