package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/maxxxfraj/Telegram-bot-Google-Gemini-Ai/internal/gemini"
)

func TestStoreAppendAndGetOrder(t *testing.T) {
	t.Parallel()

	s := NewStore(nil)
	s.Append(42, gemini.RoleUser, []gemini.Part{gemini.TextPart("first")})
	s.Append(42, gemini.RoleModel, []gemini.Part{gemini.TextPart("second")})
	s.Append(42, gemini.RoleUser, []gemini.Part{gemini.TextPart("third")})

	history := s.Get(42)
	require.Len(t, history, 3)
	require.Equal(t, gemini.RoleUser, history[0].Role)
	require.Equal(t, "first", history[0].Parts[0].Text)
	require.Equal(t, gemini.RoleModel, history[1].Role)
	require.Equal(t, "second", history[1].Parts[0].Text)
	require.Equal(t, "third", history[2].Parts[0].Text)
}

func TestStoreGetReturnsNilForUnknownUser(t *testing.T) {
	t.Parallel()

	s := NewStore(nil)
	require.Nil(t, s.Get(99))
}

func TestStoreGetReturnsCopy(t *testing.T) {
	t.Parallel()

	s := NewStore(nil)
	s.Append(42, gemini.RoleUser, []gemini.Part{gemini.TextPart("original")})

	history := s.Get(42)
	history[0] = gemini.Content{Role: gemini.RoleModel, Parts: []gemini.Part{gemini.TextPart("mutated")}}

	again := s.Get(42)
	require.Equal(t, "original", again[0].Parts[0].Text)
	require.Equal(t, gemini.RoleUser, again[0].Role)
}

func TestStoreClearIsIdempotent(t *testing.T) {
	t.Parallel()

	timers := NewTimerRegistry()
	s := NewStore(timers)
	s.Append(42, gemini.RoleUser, []gemini.Part{gemini.TextPart("hello")})
	s.SetLastBotMessage(42, 7)
	timers.Arm(42, time.Hour, func(int64) { t.Error("timer fired after clear") })

	s.Clear(42)
	s.Clear(42)

	require.Nil(t, s.Get(42))
	_, ok := s.LastBotMessage(42)
	require.False(t, ok)
	timers.mu.Lock()
	_, armed := timers.timers[42]
	timers.mu.Unlock()
	require.False(t, armed)
}

func TestStoreLastBotMessageSuperseded(t *testing.T) {
	t.Parallel()

	s := NewStore(nil)
	_, ok := s.LastBotMessage(42)
	require.False(t, ok)

	s.SetLastBotMessage(42, 10)
	id, ok := s.LastBotMessage(42)
	require.True(t, ok)
	require.Equal(t, int64(10), id)

	s.SetLastBotMessage(42, 11)
	id, _ = s.LastBotMessage(42)
	require.Equal(t, int64(11), id)
}

func TestStoreLastUserText(t *testing.T) {
	t.Parallel()

	s := NewStore(nil)
	require.Empty(t, s.LastUserText(42))

	s.Append(42, gemini.RoleUser, []gemini.Part{gemini.TextPart("describe this")})
	require.Equal(t, "describe this", s.LastUserText(42))

	s.Append(42, gemini.RoleModel, []gemini.Part{gemini.TextPart("sure")})
	require.Empty(t, s.LastUserText(42))
}

func TestStoreUsersAreIsolated(t *testing.T) {
	t.Parallel()

	s := NewStore(nil)
	s.Append(1, gemini.RoleUser, []gemini.Part{gemini.TextPart("one")})
	s.Append(2, gemini.RoleUser, []gemini.Part{gemini.TextPart("two")})

	s.Clear(1)
	require.Nil(t, s.Get(1))
	require.Len(t, s.Get(2), 1)
}
