package export

import "fmt"

// Step names the export stage a ServerError came from.
type Step string

const (
	StepEmailLookup    Step = "email_lookup"
	StepBatchFetch     Step = "batch_fetch"
	StepCodeEnrichment Step = "code_enrichment"
	StepWrite          Step = "write"
	StepUpload         Step = "upload"
	StepLinkSigning    Step = "link_signing"
	StepEmailSend      Step = "email_send"
)

// ServerError is a terminal export failure. MessageKey is the
// user-facing translation key for the failed step.
type ServerError struct {
	Step       Step
	MessageKey string
	Err        error
}

func newServerError(step Step, err error) *ServerError {
	return &ServerError{
		Step:       step,
		MessageKey: "export.error." + string(step),
		Err:        err,
	}
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("export %s failed: %v", e.Step, e.Err)
}

func (e *ServerError) Unwrap() error {
	return e.Err
}
