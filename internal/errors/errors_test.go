package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_Is(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		target error
		want   bool
	}{
		{"same kind", UnresolvedSecret("DB_PASS"), ErrUnresolvedSecret, true},
		{"different kind", UnresolvedSecret("DB_PASS"), ErrHookFailed, false},
		{"wrapped", fmt.Errorf("render: %w", UnresolvedVariable("port", "a.json")), ErrUnresolvedVariable, true},
		{"plain error", stderrors.New("boom"), ErrPushRejected, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, stderrors.Is(tt.err, tt.target))
		})
	}
}

func TestError_Message(t *testing.T) {
	t.Run("with context and cause", func(t *testing.T) {
		err := PushRejected("grafana", 409, stderrors.New("conflict"))
		err.App = "grafana_test_app"
		err.Env = "dev"
		err.Stage = "push"

		msg := err.Error()
		assert.Contains(t, msg, "[PUSH_REJECTED]")
		assert.Contains(t, msg, "app=grafana_test_app env=dev stage=push")
		assert.Contains(t, msg, "status 409")
		assert.Contains(t, msg, "conflict")
	})

	t.Run("transport failure has no status", func(t *testing.T) {
		err := PushRejected("grafana", 0, stderrors.New("dial tcp: refused"))
		assert.Contains(t, err.Error(), "could not be sent")
		assert.Equal(t, 0, err.Status)
	})
}

func TestError_Unwrap(t *testing.T) {
	cause := stderrors.New("exit status 3")
	err := HookFailed("pre_push", 3, cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, 3, err.ExitCode)
	assert.Equal(t, "pre_push", err.Key)
}

func TestWithContext(t *testing.T) {
	t.Run("fills empty fields", func(t *testing.T) {
		err := WithContext(fmt.Errorf("wrap: %w", UnresolvedSecret("TOKEN")), "app", "dev", "secrets")

		var e *Error
		require.True(t, stderrors.As(err, &e))
		assert.Equal(t, "app", e.App)
		assert.Equal(t, "dev", e.Env)
		assert.Equal(t, "secrets", e.Stage)
	})

	t.Run("keeps existing fields", func(t *testing.T) {
		inner := UnresolvedSecret("TOKEN")
		inner.Stage = "merge"
		_ = WithContext(inner, "app", "dev", "render")
		assert.Equal(t, "merge", inner.Stage)
	})

	t.Run("ignores plain errors", func(t *testing.T) {
		plain := stderrors.New("boom")
		assert.Equal(t, plain, WithContext(plain, "a", "b", "c"))
	})
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindSourceUnavailable, KindOf(SourceUnavailable("origin/main", nil)))
	assert.Equal(t, Kind(""), KindOf(stderrors.New("boom")))
}
