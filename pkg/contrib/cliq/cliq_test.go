package cliq

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wpdeploy/pkg/recipe/recipetest"
)

type webhook struct {
	mu       sync.Mutex
	messages []Message
	status   int
}

func (w *webhook) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	var msg Message
	if err := json.NewDecoder(r.Body).Decode(&msg); err == nil {
		w.mu.Lock()
		w.messages = append(w.messages, msg)
		w.mu.Unlock()
	}
	if w.status != 0 {
		rw.WriteHeader(w.status)
	}
}

func newWebhook(t *testing.T) (*webhook, string) {
	t.Helper()
	hook := &webhook{}
	srv := httptest.NewServer(hook)
	t.Cleanup(srv.Close)
	return hook, srv.URL
}

func TestNotifySendsOnce(t *testing.T) {
	hook, url := newWebhook(t)
	h := recipetest.New(t)
	h.Global.Set("cliq_webhook", url)
	h.Global.Set("application", "blog")
	h.Global.Set("user", "jane")
	Register(h.Registry)
	h.Remote("production", nil)
	h.Remote("mirror", nil)

	require.NoError(t, h.Run("cliq:notify", "production", "mirror"))

	require.Len(t, hook.messages, 1)
	assert.Equal(t, "_jane_ deploying `production` to *production.example.com*", hook.messages[0].Text)
	assert.Equal(t, "blog", hook.messages[0].Bot.Name)
}

func TestNotifySuccessTemplate(t *testing.T) {
	hook, url := newWebhook(t)
	h := recipetest.New(t)
	h.Global.Set("cliq_webhook", url)
	Register(h.Registry)
	h.Remote("staging", nil)

	require.NoError(t, h.Run("cliq:notify:success", "staging"))

	require.Len(t, hook.messages, 1)
	assert.Equal(t, "Deploy to *staging* successful", hook.messages[0].Text)
	assert.Equal(t, "Project", hook.messages[0].Bot.Name)
	assert.NotContains(t, h.Out.String(), "cliq:notify:success")
}

func TestNotifyRequiresWebhook(t *testing.T) {
	h := recipetest.New(t)
	Register(h.Registry)
	h.Remote("production", nil)

	err := h.Run("cliq:notify", "production")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoWebhook)
	assert.Contains(t, h.Out.String(), "No Cliq webhook configured")
}

func TestNotifyIgnoresErrorStatus(t *testing.T) {
	hook, url := newWebhook(t)
	hook.status = http.StatusInternalServerError
	h := recipetest.New(t)
	h.Global.Set("cliq_webhook", url)
	Register(h.Registry)
	h.Remote("production", nil)

	require.NoError(t, h.Run("cliq:notify:failure", "production"))
	require.Len(t, hook.messages, 1)
	assert.Equal(t, "Deploy to *production* failed", hook.messages[0].Text)
}

func TestNotifyDryRun(t *testing.T) {
	hook, url := newWebhook(t)
	h := recipetest.New(t)
	h.DryRun = true
	h.Global.Set("cliq_webhook", url)
	h.Global.Set("user", "jane")
	Register(h.Registry)
	h.Remote("production", nil)

	require.NoError(t, h.Run("cliq:notify:rollback", "production"))
	assert.Empty(t, hook.messages)
	assert.Contains(t, h.Out.String(), "[DRY-RUN] Would notify Cliq: _jane_ rolled back changes on *production*")
}
