package transcribe

import "errors"

// Response error labels understood by the frontend.
const (
	LabelInvalidAudio  = "invalid-audio"
	LabelWriteFailed   = "write-failed"
	LabelWhisperFailed = "whisper-failed"
	LabelNoTranscript  = "no-transcript"
)

// Request is one transcription request from the UI bridge.
type Request struct {
	Data []byte `json:"data"`
	Ext  string `json:"ext"`
}

// Response is the structured outcome returned to the caller.
type Response struct {
	OK     bool   `json:"ok"`
	Text   string `json:"text,omitempty"`
	Error  string `json:"error,omitempty"`
	Detail string `json:"detail,omitempty"`
}

// ResponseFor converts a Run outcome into the wire response.
func ResponseFor(text string, err error) Response {
	if err == nil {
		return Response{OK: true, Text: text}
	}

	var jobErr *JobError
	if !errors.As(err, &jobErr) {
		return Response{Error: err.Error()}
	}

	switch jobErr.Kind {
	case KindInvalidAudio:
		return Response{Error: LabelInvalidAudio}
	case KindStageFailed:
		cause := "unknown"
		if jobErr.Err != nil {
			cause = jobErr.Err.Error()
		}
		return Response{Error: LabelWriteFailed + ":" + cause}
	case KindEngineFailed, KindTimedOut:
		return Response{Error: LabelWhisperFailed, Detail: jobErr.Detail}
	case KindNoOutput:
		return Response{Error: LabelNoTranscript}
	default:
		if jobErr.Err != nil {
			return Response{Error: jobErr.Err.Error()}
		}
		return Response{Error: jobErr.Error()}
	}
}
