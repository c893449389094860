package deploy

// State is the push state of one application.
type State int

const (
	StatePending State = iota
	StateRendered
	StateSecretsMerged
	StatePushPending
	StatePushed
	StatePushFailed
)

var stateNames = map[State]string{
	StatePending:       "PENDING",
	StateRendered:      "RENDERED",
	StateSecretsMerged: "SECRETS_MERGED",
	StatePushPending:   "PUSH_PENDING",
	StatePushed:        "PUSHED",
	StatePushFailed:    "PUSH_FAILED",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "UNKNOWN"
}

// Stage names stamped onto errors.
const (
	StageSource  = "source"
	StageResolve = "resolve"
	StageRender  = "render"
	StageSecrets = "secrets"
	StageWrite   = "write"
	StageBuild   = "build"
	StagePush    = "push"
)
