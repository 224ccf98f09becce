package models

// Stage is the coarse phase shown next to the progress percentage.
type Stage string

const (
	StageStarting   Stage = "starting"
	StageFetching   Stage = "fetching"
	StageCrunching  Stage = "crunching"
	StageGenerating Stage = "generating"
	StageFinalizing Stage = "finalizing"
)

// ProgressState is the transient, simulated progress of an analysis run.
type ProgressState struct {
	Percent int    `json:"percent"`
	Stage   Stage  `json:"stage"`
	Caption string `json:"caption"`
}
