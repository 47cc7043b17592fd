package flow

// Instruction is the provider-agnostic output of the progression engine.
//
// It must contain *only* information required for the provider adapter
// boundary (the TwiML builder) to execute the decision. No provider identity
// and no provider-specific fields belong here.

type Instruction struct {
	// State is the call state this instruction leaves the caller in.
	State State `json:"state"`

	// Steps are spoken/pause directives executed in order before Record/Hangup.
	Steps []Step `json:"steps,omitempty"`

	// Record, when set, asks the provider to capture a response and post the
	// result to ResumePath. Mutually exclusive with Hangup.
	Record *RecordDirective `json:"record,omitempty"`

	// Hangup explicitly ends the call after the steps.
	Hangup bool `json:"hangup,omitempty"`

	// Language is the speech language for all Say steps (BCP 47).
	Language string `json:"language,omitempty"`
}

// Step is one ordered directive: exactly one of Say or PauseSeconds is set.
type Step struct {
	Say          string  `json:"say,omitempty"`
	PauseSeconds float64 `json:"pause_seconds,omitempty"`
}

// RecordDirective carries the resume address that makes the engine stateless:
// ResumePath embeds (scenario_id, question_id) so the next webhook delivery
// can reconstruct where the caller is. The engine re-validates both ids
// against storage on every turn; they are untrusted input.
type RecordDirective struct {
	ResumePath             string `json:"resume_path"`
	FinishOnKey            string `json:"finish_on_key"`
	TimeoutSeconds         int    `json:"timeout_seconds"`
	Transcribe             bool   `json:"transcribe"`
	TranscribeCallbackPath string `json:"transcribe_callback_path,omitempty"`
}

func say(text string) Step       { return Step{Say: text} }
func pause(seconds float64) Step { return Step{PauseSeconds: seconds} }
