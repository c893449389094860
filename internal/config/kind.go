package config

import (
	"fmt"
	"strings"
)

// SchedulerKind selects the scheduler an app deploys to.
type SchedulerKind string

const (
	// KindApps is the app/group-oriented scheduler.
	KindApps SchedulerKind = "scheduler-apps"
	// KindJobs is the job-oriented scheduler.
	KindJobs SchedulerKind = "scheduler-jobs"
)

// frameworkAliases maps accepted framework values to kinds.
var frameworkAliases = map[string]SchedulerKind{
	"":               KindApps,
	"scheduler-apps": KindApps,
	"marathon":       KindApps,
	"scheduler-jobs": KindJobs,
	"chronos":        KindJobs,
}

// ParseSchedulerKind maps a framework value to a kind. Empty means KindApps.
func ParseSchedulerKind(framework string) (SchedulerKind, error) {
	kind, ok := frameworkAliases[strings.ToLower(strings.TrimSpace(framework))]
	if !ok {
		return "", fmt.Errorf("unknown framework %q: must be one of scheduler-apps, scheduler-jobs, marathon, chronos", framework)
	}
	return kind, nil
}
