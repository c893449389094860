// Package errors defines the failure kinds surfaced by the deploy pipeline.
//
// Every failure carries the application, environment and stage it happened
// in so a report is diagnosable without re-running with more verbosity.
// Kinds compare with errors.Is against the package sentinels:
//
//	if errors.Is(err, rerrors.ErrHookFailed) { ... }
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Kind classifies a pipeline failure.
type Kind string

const (
	// KindConfigurationMissing indicates a required file or key is absent.
	KindConfigurationMissing Kind = "CONFIGURATION_MISSING"
	// KindSourceUnavailable indicates the commit identifier could not be determined.
	KindSourceUnavailable Kind = "SOURCE_UNAVAILABLE"
	// KindUnresolvedVariable indicates a template referenced an unknown variable.
	KindUnresolvedVariable Kind = "UNRESOLVED_VARIABLE"
	// KindUnresolvedSecret indicates a SECRET sentinel survived the merge.
	KindUnresolvedSecret Kind = "UNRESOLVED_SECRET"
	// KindHookFailed indicates a lifecycle hook exited non-zero.
	KindHookFailed Kind = "HOOK_FAILED"
	// KindPushRejected indicates the scheduler refused the push or was unreachable.
	KindPushRejected Kind = "PUSH_REJECTED"
)

// Sentinels for errors.Is matching. Only the Kind is compared.
var (
	ErrConfigurationMissing = &Error{Kind: KindConfigurationMissing}
	ErrSourceUnavailable    = &Error{Kind: KindSourceUnavailable}
	ErrUnresolvedVariable   = &Error{Kind: KindUnresolvedVariable}
	ErrUnresolvedSecret     = &Error{Kind: KindUnresolvedSecret}
	ErrHookFailed           = &Error{Kind: KindHookFailed}
	ErrPushRejected         = &Error{Kind: KindPushRejected}
)

// Error is a classified pipeline failure.
type Error struct {
	Kind    Kind
	Message string

	// Context fields, filled in as the error travels up the pipeline.
	App   string
	Env   string
	Stage string

	// Key names the offending variable, secret, hook or file.
	Key string
	// Status is the scheduler response status for PushRejected.
	Status int
	// ExitCode is the hook exit status for HookFailed.
	ExitCode int

	Cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s]", e.Kind)

	var ctx []string
	if e.App != "" {
		ctx = append(ctx, "app="+e.App)
	}
	if e.Env != "" {
		ctx = append(ctx, "env="+e.Env)
	}
	if e.Stage != "" {
		ctx = append(ctx, "stage="+e.Stage)
	}
	if len(ctx) > 0 {
		b.WriteString(" " + strings.Join(ctx, " "))
	}

	if e.Message != "" {
		b.WriteString(": " + e.Message)
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	return b.String()
}

// Unwrap returns the underlying cause for errors.Is and errors.As support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error of the same Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// New creates an Error of the given kind.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an Error of the given kind around cause.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// ConfigurationMissing reports an absent file or key.
func ConfigurationMissing(key, format string, args ...any) *Error {
	e := New(KindConfigurationMissing, format, args...)
	e.Key = key
	return e
}

// SourceUnavailable reports that no commit identifier could be determined.
func SourceUnavailable(ref string, cause error) *Error {
	e := Wrap(KindSourceUnavailable, cause, "no commit for ref %q", ref)
	e.Key = ref
	return e
}

// UnresolvedVariable reports a template reference to an unknown variable.
func UnresolvedVariable(key, template string) *Error {
	e := New(KindUnresolvedVariable, "template %s references undefined variable %q", template, key)
	e.Key = key
	return e
}

// UnresolvedSecret reports an env key still holding the SECRET sentinel.
func UnresolvedSecret(key string) *Error {
	e := New(KindUnresolvedSecret, "env[%s] is still SECRET; the secrets file is missing this key", key)
	e.Key = key
	return e
}

// HookFailed reports a non-zero hook exit.
func HookFailed(hook string, exitCode int, cause error) *Error {
	e := Wrap(KindHookFailed, cause, "%s hook exited with status %d", hook, exitCode)
	e.Key = hook
	e.ExitCode = exitCode
	return e
}

// PushRejected reports a failed scheduler push. status is 0 when the request
// could not be sent.
func PushRejected(appID string, status int, cause error) *Error {
	var e *Error
	if status == 0 {
		e = Wrap(KindPushRejected, cause, "push of %q could not be sent", appID)
	} else {
		e = Wrap(KindPushRejected, cause, "scheduler rejected %q with status %d", appID, status)
	}
	e.Key = appID
	e.Status = status
	return e
}

// WithContext stamps app, env and stage onto err when it is an *Error and
// those fields are still empty. Other errors are returned unchanged.
func WithContext(err error, app, env, stage string) error {
	var e *Error
	if !stderrors.As(err, &e) {
		return err
	}
	if e.App == "" {
		e.App = app
	}
	if e.Env == "" {
		e.Env = env
	}
	if e.Stage == "" {
		e.Stage = stage
	}
	return err
}

// KindOf returns the Kind of err, or "" when err is not classified.
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return ""
}
