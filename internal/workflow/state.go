package workflow

import "github.com/dyike/TradeLens/internal/models"

// State is the workflow as one value: either LoggedOut or LoggedIn, and
// when logged in exactly one Activity. Impossible combinations such as
// analyzing with an error cannot be expressed.
type State interface {
	isState()
}

type LoggedOut struct {
	// Error is the message of the last failed login, if any.
	Error string
}

type LoggedIn struct {
	Activity Activity
	Pending  *models.PendingFile
	Upload   models.UploadStatus
}

func (LoggedOut) isState() {}
func (LoggedIn) isState()  {}

// Activity is what a logged-in workflow is doing.
type Activity interface {
	isActivity()
}

type Idle struct{}

type Uploading struct {
	File string
}

type Analyzing struct {
	Progress models.ProgressState
}

type ResultReady struct {
	Result *models.AnalysisResult
}

type Failed struct {
	Err *AnalysisError
}

func (Idle) isActivity()        {}
func (Uploading) isActivity()   {}
func (Analyzing) isActivity()   {}
func (ResultReady) isActivity() {}
func (Failed) isActivity()      {}
