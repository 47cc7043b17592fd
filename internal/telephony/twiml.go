package telephony

import (
	"bytes"
	"encoding/xml"
	"errors"

	"github.com/Newrona-pi/Twilio-INPUT/internal/flow"
)

// TwiML is a minimal Twilio Markup Language response builder.
// It intentionally avoids any provider SDK dependency.
//
// Only include primitives we need at the adapter boundary.

type twimlResponse struct {
	XMLName xml.Name `xml:"Response"`
	Verbs   []any    `xml:",any"`
}

type twimlSay struct {
	XMLName  xml.Name `xml:"Say"`
	Language string   `xml:"language,attr,omitempty"`
	Text     string   `xml:",chardata"`
}

type twimlPause struct {
	XMLName xml.Name `xml:"Pause"`
	Length  float64  `xml:"length,attr"`
}

type twimlRecord struct {
	XMLName            xml.Name `xml:"Record"`
	Action             string   `xml:"action,attr"`
	Method             string   `xml:"method,attr"`
	FinishOnKey        string   `xml:"finishOnKey,attr,omitempty"`
	Timeout            int      `xml:"timeout,attr"`
	Transcribe         bool     `xml:"transcribe,attr"`
	TranscribeCallback string   `xml:"transcribeCallback,attr,omitempty"`
}

type twimlHangup struct {
	XMLName xml.Name `xml:"Hangup"`
}

// RenderTwiML maps a flow.Instruction to TwiML. Steps render in order, then
// the terminal verb (Record or Hangup).
func RenderTwiML(in flow.Instruction) (string, error) {
	if in.Record != nil && in.Hangup {
		return "", errors.New("telephony: instruction cannot both record and hang up")
	}

	var r twimlResponse
	for _, step := range in.Steps {
		switch {
		case step.Say != "":
			r.Verbs = append(r.Verbs, twimlSay{Text: step.Say, Language: in.Language})
		case step.PauseSeconds > 0:
			r.Verbs = append(r.Verbs, twimlPause{Length: step.PauseSeconds})
		}
	}

	if in.Record != nil {
		if in.Record.ResumePath == "" {
			return "", errors.New("telephony: record directive requires a resume path")
		}
		r.Verbs = append(r.Verbs, twimlRecord{
			Action:             in.Record.ResumePath,
			Method:             "POST",
			FinishOnKey:        in.Record.FinishOnKey,
			Timeout:            in.Record.TimeoutSeconds,
			Transcribe:         in.Record.Transcribe,
			TranscribeCallback: in.Record.TranscribeCallbackPath,
		})
	}
	if in.Hangup {
		r.Verbs = append(r.Verbs, twimlHangup{})
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(r); err != nil {
		return "", err
	}
	if err := enc.Flush(); err != nil {
		return "", err
	}
	return buf.String(), nil
}
