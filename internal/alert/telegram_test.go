package alert

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTelegram(srv *httptest.Server) *Telegram {
	return &Telegram{
		token:   "123456:AAbot-token",
		chatID:  "987654",
		apiBase: srv.URL,
		client:  srv.Client(),
	}
}

func TestTelegramNotify(t *testing.T) {
	var gotPath, gotChatID, gotText string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, r.ParseForm())
		gotChatID = r.PostFormValue("chat_id")
		gotText = r.PostFormValue("text")
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	err := newTestTelegram(srv).Notify(context.Background(), "backup of /var/lib/app.db failed")
	require.NoError(t, err)

	assert.Equal(t, "/bot123456:AAbot-token/sendMessage", gotPath)
	assert.Equal(t, "987654", gotChatID)
	assert.Equal(t, "backup of /var/lib/app.db failed", gotText)
}

func TestTelegramNotifyAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"ok":false,"description":"Unauthorized"}`))
	}))
	defer srv.Close()

	err := newTestTelegram(srv).Notify(context.Background(), "message")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
	assert.Contains(t, err.Error(), "Unauthorized")
}

func TestTelegramNotifyConnectionError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // refuse connections

	err := newTestTelegram(srv).Notify(context.Background(), "message")
	assert.Error(t, err)
}

func TestNoop(t *testing.T) {
	assert.NoError(t, Noop{}.Notify(context.Background(), "anything"))
}
