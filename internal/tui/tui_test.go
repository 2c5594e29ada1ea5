package tui

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonandersen/tokenctl/internal/auth"
)

var monitorTime = time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)

// fakeSource is an in-memory TokenSource.
type fakeSource struct {
	mu       sync.Mutex
	cached   *auth.Credential
	next     *auth.Credential
	fetchErr error
	fetches  int
	removes  int
}

func (f *fakeSource) GetOrCreateAccessToken(ctx context.Context) (*auth.Credential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cached != nil && f.cached.ExpiresAt.After(monitorTime.Add(time.Minute)) {
		return f.cached, nil
	}
	f.fetches++
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	f.cached = f.next
	return f.next, nil
}

func (f *fakeSource) GetAccessToken(ctx context.Context) (*auth.Credential, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cached, f.cached != nil, nil
}

func (f *fakeSource) RemoveAccessToken(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removes++
	f.cached = nil
	return nil
}

func (f *fakeSource) StaleMargin() time.Duration { return time.Minute }

func credential(token string, expiresIn time.Duration) *auth.Credential {
	return &auth.Credential{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(expiresIn.Seconds()),
		ExpiresAt:   monitorTime.Add(expiresIn),
		Scope:       []string{"user-read-private"},
	}
}

func newTestModel(src *fakeSource, opts ...Option) Model {
	opts = append([]Option{WithClock(func() time.Time { return monitorTime })}, opts...)
	m := New(src, opts...)
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	return updated.(Model)
}

func keyMsg(key string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
}

// send applies msg and runs a returned command once, feeding its result back.
func send(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	updated, cmd := m.Update(msg)
	m = updated.(Model)
	if cmd == nil {
		return m
	}
	if result := cmd(); result != nil {
		if _, isBatch := result.(tea.BatchMsg); !isBatch {
			updated, _ = m.Update(result)
			m = updated.(Model)
		}
	}
	return m
}

func TestNew(t *testing.T) {
	m := New(&fakeSource{})
	assert.Equal(t, StateLoading, m.state)
	assert.False(t, m.autoRenew)
	assert.NotNil(t, m.Init())
}

func TestModelView_NotReady(t *testing.T) {
	m := New(&fakeSource{})
	assert.Equal(t, "Loading...", m.View())
}

func TestModel_PeekEmpty(t *testing.T) {
	src := &fakeSource{}
	m := newTestModel(src)

	msg := m.peekCmd()()
	m = send(t, m, msg)

	assert.Equal(t, StateEmpty, m.state)
	assert.Contains(t, m.View(), "No cached token")
	assert.Zero(t, src.fetches, "peek must not fetch")
}

func TestModel_PeekCached(t *testing.T) {
	src := &fakeSource{cached: credential("tok-secret-value", time.Hour)}
	m := newTestModel(src)

	m = send(t, m, m.peekCmd()())

	assert.Equal(t, StateLoaded, m.state)
	view := m.View()
	assert.Contains(t, view, "fresh")
	assert.Contains(t, view, "1h0m0s")
	assert.Contains(t, view, "user-read-private")
	assert.NotContains(t, view, "tok-secret-value", "token value is never rendered")
}

func TestModel_GetKey(t *testing.T) {
	src := &fakeSource{next: credential("new", time.Hour)}
	m := newTestModel(src)

	m = send(t, m, keyMsg("g"))

	assert.Equal(t, StateLoaded, m.state)
	assert.Equal(t, "new", m.cred.AccessToken)
	assert.Equal(t, 1, src.fetches)
	require.NotEmpty(t, m.events)
	assert.Equal(t, "issued", m.events[0][1])
}

func TestModel_ForceRefresh(t *testing.T) {
	src := &fakeSource{cached: credential("old", time.Hour), next: credential("new", time.Hour)}
	m := newTestModel(src)

	m = send(t, m, keyMsg("r"))

	assert.Equal(t, 1, src.removes)
	assert.Equal(t, 1, src.fetches)
	assert.Equal(t, "new", m.cred.AccessToken)
	assert.False(t, m.busy)
}

func TestModel_Clear(t *testing.T) {
	src := &fakeSource{cached: credential("old", time.Hour)}
	m := newTestModel(src)
	m = send(t, m, m.peekCmd()())

	m = send(t, m, keyMsg("c"))

	assert.Equal(t, StateEmpty, m.state)
	assert.Nil(t, m.cred)
	assert.Equal(t, "cleared", m.events[0][1])
}

func TestModel_FetchError(t *testing.T) {
	src := &fakeSource{fetchErr: errors.New("token endpoint error (401): invalid_grant")}
	m := newTestModel(src)

	m = send(t, m, keyMsg("g"))

	assert.Equal(t, StateError, m.state)
	assert.Contains(t, m.View(), "invalid_grant")
	assert.Equal(t, "fetch failed", m.events[0][1])
}

func TestModel_BusyIgnoresKeys(t *testing.T) {
	m := newTestModel(&fakeSource{})
	m.busy = true

	_, cmd := m.Update(keyMsg("g"))

	assert.Nil(t, cmd)
}

func TestModel_StaleDisplay(t *testing.T) {
	src := &fakeSource{cached: credential("old", 30*time.Second)}
	m := newTestModel(src)
	m = send(t, m, m.peekCmd()())

	assert.True(t, m.Stale())
	assert.Contains(t, m.View(), "stale")
}

func TestModel_TickAutoRenew(t *testing.T) {
	src := &fakeSource{cached: credential("old", 30*time.Second), next: credential("new", time.Hour)}
	m := newTestModel(src, WithAutoRenew(true))
	m = send(t, m, m.peekCmd()())

	updated, cmd := m.Update(TickMsg(monitorTime.Add(time.Second)))
	m = updated.(Model)
	require.NotNil(t, cmd)
	assert.True(t, m.busy)
	assert.Equal(t, monitorTime.Add(time.Second), m.clock)
}

func TestModel_TickWithoutAutoRenew(t *testing.T) {
	src := &fakeSource{cached: credential("old", 30*time.Second)}
	m := newTestModel(src)
	m = send(t, m, m.peekCmd()())

	updated, _ := m.Update(TickMsg(monitorTime.Add(time.Second)))
	m = updated.(Model)

	assert.False(t, m.busy)
	assert.Zero(t, src.fetches)
}

func TestModel_ToggleAutoRenew(t *testing.T) {
	m := newTestModel(&fakeSource{})

	m = send(t, m, keyMsg("a"))
	assert.True(t, m.autoRenew)
	assert.Contains(t, m.View(), "auto-renew on")

	m = send(t, m, keyMsg("a"))
	assert.False(t, m.autoRenew)
}

func TestModel_Quit(t *testing.T) {
	m := newTestModel(&fakeSource{})

	_, cmd := m.Update(keyMsg("q"))

	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestModel_EventsCapped(t *testing.T) {
	m := newTestModel(&fakeSource{})
	for i := 0; i < maxEvents+10; i++ {
		m.addEvent("x", "y")
	}
	assert.Len(t, m.events, maxEvents)
}
