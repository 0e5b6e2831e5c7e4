package session

import (
	"errors"
	"regexp"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopTransport struct{}

func (nopTransport) Send([]byte) error { return nil }
func (nopTransport) Close() error      { return nil }

func TestFencingTokenFormat(t *testing.T) {
	t.Parallel()
	token := NewFencingToken()
	assert.Regexp(t, regexp.MustCompile(`^\d+_[0-9a-f-]{36}$`), token)
	assert.NotEqual(t, token, NewFencingToken())
}

func TestSanitizeID(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "RUT123", SanitizeID("RUT123"))
	assert.Equal(t, "a_b_c_d_e_f_g_h_i_j_k_", SanitizeID("a]b[c*d,e;f'g\"h`i<j>k\\"))
	assert.Equal(t, "what_", SanitizeID("what?"))
}

func TestOnConnectWithoutCredentials(t *testing.T) {
	t.Parallel()
	registry := NewRegistry(Credentials{})

	s, outcome, previous := registry.OnConnect("RUT123", Credentials{Username: "anyone"}, nopTransport{})
	require.NotNil(t, s)
	assert.Equal(t, Accepted, outcome)
	assert.Nil(t, previous)
	assert.Equal(t, "RUT123", s.ClientID)
	assert.NotEmpty(t, s.FencingToken)
	assert.True(t, registry.IsAuthoritative("RUT123", s.FencingToken))
	assert.Equal(t, 1, registry.Len())
}

func TestReconnectFencesOldSession(t *testing.T) {
	t.Parallel()
	registry := NewRegistry(Credentials{})

	old, _, _ := registry.OnConnect("RUT123", Credentials{}, nopTransport{})
	old.SetDeviceID("123456780")

	fresh, outcome, previous := registry.OnConnect("RUT123", Credentials{}, nopTransport{})
	assert.Equal(t, Reconnected, outcome)
	assert.Same(t, old, previous)
	assert.NotEqual(t, old.FencingToken, fresh.FencingToken)
	assert.Empty(t, fresh.DeviceID(), "a reconnect starts a fresh session")

	assert.False(t, registry.IsAuthoritative("RUT123", old.FencingToken))
	assert.True(t, registry.IsAuthoritative("RUT123", fresh.FencingToken))

	// the stale socket closing must not evict the live session
	_, removed := registry.OnClose("RUT123", old.FencingToken)
	assert.False(t, removed)
	assert.Equal(t, 1, registry.Len())

	s, removed := registry.OnClose("RUT123", fresh.FencingToken)
	assert.True(t, removed)
	assert.Same(t, fresh, s)
	assert.Equal(t, 0, registry.Len())
	assert.False(t, registry.IsAuthoritative("RUT123", fresh.FencingToken), "a removed session is not authoritative")
}

func TestBadCredentialsEvictPrevious(t *testing.T) {
	t.Parallel()
	registry := NewRegistry(Credentials{Username: "user", Password: "pass1"})

	_, outcome, _ := registry.OnConnect("other", Credentials{Username: "user", Password: "wrong"}, nopTransport{})
	assert.Equal(t, BadCredentials, outcome)
	assert.Equal(t, 0, registry.Len())

	old, outcome, _ := registry.OnConnect("RUT123", Credentials{Username: "user", Password: "pass1"}, nopTransport{})
	require.Equal(t, Accepted, outcome)

	s, outcome, previous := registry.OnConnect("RUT123", Credentials{Username: "user"}, nopTransport{})
	assert.Nil(t, s)
	assert.Equal(t, BadCredentials, outcome)
	assert.Same(t, old, previous)
	assert.Equal(t, 0, registry.Len())
	assert.False(t, registry.IsAuthoritative("RUT123", old.FencingToken))
}

func TestRegistrySnapshots(t *testing.T) {
	t.Parallel()
	registry := NewRegistry(Credentials{})
	for _, id := range []string{"c", "a", "b"} {
		registry.OnConnect(id, Credentials{}, nopTransport{})
	}
	assert.Equal(t, []string{"a", "b", "c"}, registry.ClientIDs())

	sessions := registry.Sessions()
	require.Len(t, sessions, 3)
	assert.Equal(t, "a", sessions[0].ClientID)

	evicted, ok := registry.Evict("b")
	assert.True(t, ok)
	assert.Equal(t, "b", evicted.ClientID)
	_, ok = registry.Evict("b")
	assert.False(t, ok)
	assert.Equal(t, []string{"a", "c"}, registry.ClientIDs())
}

func TestTopicStatus(t *testing.T) {
	t.Parallel()
	s := newSession("RUT123", "", nopTransport{})

	assert.True(t, s.MarkRequested("temperature"), "absent topics are requested")
	assert.False(t, s.MarkRequested("temperature"), "requested topics wait for their answer")

	s.MarkReceived("temperature")
	status, ok := s.TopicStatus("temperature")
	require.True(t, ok)
	assert.Equal(t, Received, status)
	assert.True(t, s.MarkRequested("temperature"), "received topics are polled again")

	s.ResetTopic("temperature")
	assert.True(t, s.MarkRequested("temperature"), "reset topics are requested")

	_, ok = s.TopicStatus("signal")
	assert.False(t, ok)
}

func TestSwapAlive(t *testing.T) {
	t.Parallel()
	s := newSession("RUT123", "", nopTransport{})
	assert.True(t, s.SwapAlive(true))
	assert.False(t, s.SwapAlive(true))
	assert.True(t, s.SwapAlive(false))
	assert.False(t, s.SwapAlive(false))
	s.ForgetAlive()
	assert.True(t, s.SwapAlive(false))
}

func TestWriteAlive(t *testing.T) {
	t.Parallel()
	s := newSession("RUT123", "", nopTransport{})
	var writes []bool
	write := func(alive bool) error {
		writes = append(writes, alive)
		return nil
	}

	require.NoError(t, s.WriteAlive(true, write))
	require.NoError(t, s.WriteAlive(true, write))
	assert.Equal(t, []bool{true}, writes)

	boom := errors.New("boom")
	assert.ErrorIs(t, s.WriteAlive(false, func(bool) error { return boom }), boom)
	require.NoError(t, s.WriteAlive(false, write), "a failed write is retried")
	assert.Equal(t, []bool{true, false}, writes)
}

func TestRegistryConcurrentConnects(t *testing.T) {
	t.Parallel()
	registry := NewRegistry(Credentials{})

	var wg sync.WaitGroup
	tokens := make(chan string, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, _, _ := registry.OnConnect("RUT123", Credentials{}, nopTransport{})
			tokens <- s.FencingToken
		}()
	}
	wg.Wait()
	close(tokens)

	authoritative := 0
	for token := range tokens {
		if registry.IsAuthoritative("RUT123", token) {
			authoritative++
		}
	}
	assert.Equal(t, 1, authoritative)
	assert.Equal(t, 1, registry.Len())
}
