package classroom

// ProgressState is the persisted provisioning progress of one collaborator on
// one invitation. The machine is linear:
//
//	pending -> accepted -> creating_repo -> importing_starter_code -> completed
//	                                     \-> errored_creating_repo
//	                                     \-> errored_importing_starter_code
//
// importing_starter_code is skipped when the assignment has no push-style
// starter code.
type ProgressState string

const (
	StatePending                     ProgressState = "pending"
	StateAccepted                    ProgressState = "accepted"
	StateCreatingRepo                ProgressState = "creating_repo"
	StateImportingStarterCode        ProgressState = "importing_starter_code"
	StateCompleted                   ProgressState = "completed"
	StateErroredCreatingRepo         ProgressState = "errored_creating_repo"
	StateErroredImportingStarterCode ProgressState = "errored_importing_starter_code"
)

var forwardTransitions = map[ProgressState][]ProgressState{
	StatePending:              {StateAccepted},
	StateAccepted:             {StateCreatingRepo},
	StateCreatingRepo:         {StateImportingStarterCode, StateCompleted},
	StateImportingStarterCode: {StateCompleted},
}

func (s ProgressState) Valid() bool {
	switch s {
	case StatePending, StateAccepted, StateCreatingRepo, StateImportingStarterCode,
		StateCompleted, StateErroredCreatingRepo, StateErroredImportingStarterCode:
		return true
	}
	return false
}

func (s ProgressState) IsError() bool {
	return s == StateErroredCreatingRepo || s == StateErroredImportingStarterCode
}

func (s ProgressState) IsTerminal() bool {
	return s == StateCompleted || s.IsError()
}

// IsInProgress reports whether an attempt is currently between accept and a
// terminal state.
func (s ProgressState) IsInProgress() bool {
	return s == StateCreatingRepo || s == StateImportingStarterCode
}

// CanAdvance reports whether from -> to is a legal transition. Any
// non-terminal state may move into an error state; nothing leaves a terminal
// state.
func CanAdvance(from, to ProgressState) bool {
	if from.IsTerminal() || !to.Valid() {
		return false
	}
	if to.IsError() {
		return true
	}
	for _, next := range forwardTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
