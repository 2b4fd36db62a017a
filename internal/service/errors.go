package service

import (
	"errors"
	"fmt"
)

var (
	// ErrSyncInFlight is returned when a sync is requested while another
	// cycle is still running. Callers treat it as "already being handled".
	ErrSyncInFlight = errors.New("sync cycle already in flight")

	// ErrRepeatedConflict fails the cycle when a record conflicts again on
	// the repush that followed its resolution.
	ErrRepeatedConflict = errors.New("record conflicted twice in one cycle")

	ErrUnknownPolicy    = errors.New("unknown conflict resolution policy")
	ErrMissingArbitrate = errors.New("client-arbitrates policy requires a resolver function")
)

// SyncStage names the orchestrator stage an error surfaced in.
type SyncStage string

const (
	StageProvision SyncStage = "provision"
	StagePush      SyncStage = "push"
	StageResolve   SyncStage = "resolve"
	StageFetch     SyncStage = "fetch"
	StageApply     SyncStage = "apply"
	StageCommit    SyncStage = "commit"
)

// SyncError wraps a stage failure so callers can tell where a cycle died
// without parsing messages.
type SyncError struct {
	Stage SyncStage
	Err   error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("sync %s stage: %v", e.Stage, e.Err)
}

func (e *SyncError) Unwrap() error { return e.Err }

func stageErr(stage SyncStage, err error) error {
	return &SyncError{Stage: stage, Err: err}
}
