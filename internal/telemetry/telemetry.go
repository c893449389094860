// Package telemetry records one timing and outcome record per lifecycle
// event of a deploy.
package telemetry

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
)

// MetricName is the name every record is emitted under.
const MetricName = "roger-tools.rogeros_tools_exec_time"

// Outcome values.
const (
	OutcomeSuccess = "SUCCESS"
	OutcomeFailure = "FAILURE"
)

// EventDeploy is the event name of the per-application summary record.
const EventDeploy = "deploy"

// Tags identify what a record measured.
type Tags struct {
	App        string
	Event      string
	Identifier string
	ConfigName string
	Env        string
	User       string
	Outcome    string
}

// Record is one timed lifecycle event.
type Record struct {
	MetricName     string
	Tags           Tags
	DurationMillis int64
}

// NewRecord builds a record for an event that started at start.
func NewRecord(tags Tags, start, end time.Time) Record {
	return Record{
		MetricName:     MetricName,
		Tags:           tags,
		DurationMillis: end.Sub(start).Milliseconds(),
	}
}

// String renders the record as a tagged line:
// "<metric>,app_name=..,event=..,... duration_ms=N".
func (r Record) String() string {
	var b strings.Builder
	b.WriteString(r.MetricName)
	for _, kv := range [][2]string{
		{"app_name", r.Tags.App},
		{"event", r.Tags.Event},
		{"identifier", r.Tags.Identifier},
		{"config_name", r.Tags.ConfigName},
		{"env", r.Tags.Env},
		{"user", r.Tags.User},
		{"outcome", r.Tags.Outcome},
	} {
		fmt.Fprintf(&b, ",%s=%s", kv[0], kv[1])
	}
	fmt.Fprintf(&b, " duration_ms=%d", r.DurationMillis)
	return b.String()
}

// Outcome maps an error to its outcome tag.
func Outcome(err error) string {
	if err != nil {
		return OutcomeFailure
	}
	return OutcomeSuccess
}

// Identifier returns "<unix-seconds>-<hash>" where hash is the first eight
// hex digits of sha224("<config>-<user>-<app>").
func Identifier(configName, user, app string, now time.Time) string {
	sum := sha256.Sum224([]byte(configName + "-" + user + "-" + app))
	return fmt.Sprintf("%d-%s", now.Unix(), hex.EncodeToString(sum[:])[:8])
}

// Recorder receives records.
type Recorder interface {
	Record(ctx context.Context, r Record) error
}

// MemoryRecorder keeps records in memory.
type MemoryRecorder struct {
	mu      sync.Mutex
	records []Record
}

var _ Recorder = (*MemoryRecorder)(nil)

// Record implements Recorder.
func (m *MemoryRecorder) Record(_ context.Context, r Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, r)
	return nil
}

// Records returns a copy of everything recorded so far.
func (m *MemoryRecorder) Records() []Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Record, len(m.records))
	copy(out, m.records)
	return out
}

// Multi fans records out to several recorders.
type Multi []Recorder

var _ Recorder = Multi(nil)

// Record implements Recorder. Every recorder is tried; failures are combined.
func (m Multi) Record(ctx context.Context, r Record) error {
	var result *multierror.Error
	for _, rec := range m {
		if err := rec.Record(ctx, r); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}
