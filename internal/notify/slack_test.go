package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlack_PostsColoredAttachment(t *testing.T) {
	got := make(chan slackMessage, 2)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var m slackMessage
		if err := json.NewDecoder(r.Body).Decode(&m); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		got <- m
	}))
	defer ts.Close()

	s := NewSlack(ts.URL)
	require.NotNil(t, s)

	require.NoError(t, s.Send(context.Background(), Alert{
		ChannelID: "7", ChannelName: "Sports", Title: "🔴 Channel OFFLINE", Text: "Reason: probe_failed",
	}))
	down := <-got
	assert.Equal(t, "🔴 Channel OFFLINE: Sports", down.Text)
	require.Len(t, down.Attachments, 1)
	assert.Equal(t, colorDown, down.Attachments[0].Color)
	assert.Equal(t, "Reason: probe_failed", down.Attachments[0].Text)
	assert.Contains(t, down.Attachments[0].Footer, "channel 7")

	require.NoError(t, s.Send(context.Background(), Alert{ChannelID: "7", ChannelName: "Sports", Up: true, Title: "🟢 Channel RECOVERED"}))
	up := <-got
	assert.Equal(t, colorUp, up.Attachments[0].Color)
}

func TestSlack_Non2xxCarriesStatusAndChannel(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte("invalid_token"))
	}))
	defer ts.Close()

	err := NewSlack(ts.URL).Send(context.Background(), Alert{ChannelID: "9", Title: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 403")
	assert.Contains(t, err.Error(), "channel 9")
	assert.Contains(t, err.Error(), "invalid_token")
}

func TestNewSlack_EmptyWebhook(t *testing.T) {
	assert.Nil(t, NewSlack(""))
}
