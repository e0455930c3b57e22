package persist

import (
	"time"

	"github.com/Sumatoshi-tech/repominer/pkg/classifier"
)

// StateVersion is bumped when MiningState changes incompatibly.
const StateVersion = 1

const stateBasename = "repominer-state"

// FileWindow is a persisted fixed file: the file was defective from BIC up
// to, but excluding, FIC.
type FileWindow struct {
	Filepath string `json:"filepath"`
	BIC      string `json:"bic"`
	FIC      string `json:"fic"`
}

// MiningState is the snapshot of a mining run.
type MiningState struct {
	Version       int                            `json:"version"`
	Repository    string                         `json:"repository"`
	Branch        string                         `json:"branch,omitempty"`
	FixingCommits []string                       `json:"fixing_commits"`
	Labels        map[string]classifier.LabelSet `json:"labels,omitempty"`
	FixedFiles    []FileWindow                   `json:"fixed_files,omitempty"`
	CreatedAt     time.Time                      `json:"created_at"`
}

// NewStatePersister stores MiningState with codec.
func NewStatePersister(codec Codec) *Persister[MiningState] {
	return NewPersister[MiningState](stateBasename, codec)
}
