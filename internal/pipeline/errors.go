package pipeline

import (
	"fmt"
	"strings"

	"github.com/archivelab/testimony/internal/ai/transcribe"
)

// FailureCode is the stable error vocabulary persisted on testimony rows
// and rendered to end users. Stored error strings have the form
// "<code>: <detail>".
type FailureCode string

const (
	FailTimeout            FailureCode = "TRANSCRIPTION_TIMEOUT"
	FailNetwork            FailureCode = "TRANSCRIPTION_NETWORK_ERROR"
	FailInvalidAudio       FailureCode = "TRANSCRIPTION_INVALID_AUDIO"
	FailServiceUnavailable FailureCode = "TRANSCRIPTION_SERVICE_UNAVAILABLE"
	FailEmptyResult        FailureCode = "TRANSCRIPTION_EMPTY_RESULT"
	FailFileTooLong        FailureCode = "TRANSCRIPTION_FILE_TOO_LONG"
	FailNoMediaURL         FailureCode = "NO_MEDIA_URL"
	FailEmbedding          FailureCode = "EMBEDDING_FAILED"
	FailUnknown            FailureCode = "UNKNOWN"
)

// failureFromTranscribe maps an adapter error class onto the persisted
// vocabulary. This is the only place the mapping happens.
func failureFromTranscribe(err *transcribe.Error) FailureCode {
	switch err.Code {
	case transcribe.CodeTimeout, transcribe.CodeGatewayTimeout:
		return FailTimeout
	case transcribe.CodeNetwork, transcribe.CodeConnectionReset, transcribe.CodeClientClosed:
		return FailNetwork
	case transcribe.CodeInvalidAudio:
		return FailInvalidAudio
	case transcribe.CodeServiceUnavailable:
		return FailServiceUnavailable
	default:
		return FailUnknown
	}
}

// FormatFailure renders the stored error string.
func FormatFailure(code FailureCode, detail string) string {
	return fmt.Sprintf("%s: %s", code, detail)
}

// ParseFailureCode recovers the code from a stored error string.
func ParseFailureCode(stored string) FailureCode {
	code, _, found := strings.Cut(stored, ":")
	if !found {
		return FailUnknown
	}
	switch c := FailureCode(strings.TrimSpace(code)); c {
	case FailTimeout, FailNetwork, FailInvalidAudio, FailServiceUnavailable,
		FailEmptyResult, FailFileTooLong, FailNoMediaURL, FailEmbedding:
		return c
	default:
		return FailUnknown
	}
}

// userFacingMessages translates failure codes to the text shown to
// submitters in notifications and status emails.
var userFacingMessages = map[FailureCode]string{
	FailTimeout:            "Transcription took too long and was stopped. We will retry automatically.",
	FailNetwork:            "A network problem interrupted transcription. We will retry automatically.",
	FailInvalidAudio:       "The uploaded file could not be read as audio. Please re-upload it in a supported format.",
	FailServiceUnavailable: "The transcription service is temporarily unavailable. We will retry automatically.",
	FailEmptyResult:        "No speech was detected in the recording.",
	FailFileTooLong:        "The recording is too long to transcribe. Please split it into shorter parts.",
	FailNoMediaURL:         "No media file is attached to this testimony.",
	FailEmbedding:          "The testimony was transcribed, but search indexing failed. It will be reindexed automatically.",
	FailUnknown:            "Something went wrong while processing this testimony.",
}

// UserFacingMessage translates a stored error string for display.
func UserFacingMessage(stored string) string {
	return userFacingMessages[ParseFailureCode(stored)]
}
