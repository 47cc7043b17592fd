package flow

// Prompts are the spoken scripts the engine falls back to when a scenario
// does not configure its own. Defaults match the production questionnaires,
// which are Japanese-first.
type Prompts struct {
	// Rejection is spoken when no active scenario resolves for the dialed number.
	Rejection string

	// Guidance is spoken before the first question when the scenario has no
	// guidance text of its own.
	Guidance string

	// NoQuestions is spoken when the scenario has zero active questions.
	NoQuestions string

	// SequenceError is spoken when a resume address no longer resolves to a
	// question; the call cannot continue.
	SequenceError string

	// Closing is spoken after the last answer, before hanging up.
	Closing string
}

func DefaultPrompts() Prompts {
	return Prompts{
		Rejection:     "現在この番号は使われておりません。",
		Guidance:      "このあと何点か質問をさせていただきます。回答が済みましたら＃を押して次に進んでください",
		NoQuestions:   "質問が設定されていません。終了します。",
		SequenceError: "エラーが発生しました。",
		Closing:       "ご回答ありがとうございました。失礼いたします。",
	}
}

func (p Prompts) withDefaults() Prompts {
	d := DefaultPrompts()
	if p.Rejection == "" {
		p.Rejection = d.Rejection
	}
	if p.Guidance == "" {
		p.Guidance = d.Guidance
	}
	if p.NoQuestions == "" {
		p.NoQuestions = d.NoQuestions
	}
	if p.SequenceError == "" {
		p.SequenceError = d.SequenceError
	}
	if p.Closing == "" {
		p.Closing = d.Closing
	}
	return p
}
