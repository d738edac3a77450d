package protocol

import "fmt"

// ErrorCode classifies the state of a request on the remote peer.  Each
// code travels on the wire as a single rune.
type ErrorCode rune

const (
	InitOk               ErrorCode = 'i'
	PreProcessingOk      ErrorCode = 'B'
	TransferOk           ErrorCode = 'X'
	PostProcessingOk     ErrorCode = 'P'
	CompleteOk           ErrorCode = 'O'
	ConnectionImpossible ErrorCode = 'H'
	ServerOverloaded     ErrorCode = 'l'
	BadAuthent           ErrorCode = 'A'
	ExternalOp           ErrorCode = 'E'
	TransferError        ErrorCode = 'T'
	MD5Error             ErrorCode = 'M'
	Disconnection        ErrorCode = 'D'
	RemoteShutdown       ErrorCode = 'r'
	FinalOp              ErrorCode = 'F'
	Unimplemented        ErrorCode = 'U'
	Shutdown             ErrorCode = 'S'
	RemoteError          ErrorCode = 'R'
	Internal             ErrorCode = 'I'
	StoppedTransfer      ErrorCode = 'h'
	CanceledTransfer     ErrorCode = 'C'
	Warning              ErrorCode = 'W'
	Unknown              ErrorCode = '-'
	QueryAlreadyFinished ErrorCode = 'Q'
	QueryStillRunning    ErrorCode = 's'
	NotKnownHost         ErrorCode = 'N'
	QueryRemotelyUnknown ErrorCode = 'u'
	FileNotFound         ErrorCode = 'f'
	CommandNotFound      ErrorCode = 'c'
	Running              ErrorCode = 'z'
)

var codeNames = map[ErrorCode]string{
	InitOk:               "InitOk",
	PreProcessingOk:      "PreProcessingOk",
	TransferOk:           "TransferOk",
	PostProcessingOk:     "PostProcessingOk",
	CompleteOk:           "CompleteOk",
	ConnectionImpossible: "ConnectionImpossible",
	ServerOverloaded:     "ServerOverloaded",
	BadAuthent:           "BadAuthent",
	ExternalOp:           "ExternalOp",
	TransferError:        "TransferError",
	MD5Error:             "MD5Error",
	Disconnection:        "Disconnection",
	RemoteShutdown:       "RemoteShutdown",
	FinalOp:              "FinalOp",
	Unimplemented:        "Unimplemented",
	Shutdown:             "Shutdown",
	RemoteError:          "RemoteError",
	Internal:             "Internal",
	StoppedTransfer:      "StoppedTransfer",
	CanceledTransfer:     "CanceledTransfer",
	Warning:              "Warning",
	Unknown:              "Unknown",
	QueryAlreadyFinished: "QueryAlreadyFinished",
	QueryStillRunning:    "QueryStillRunning",
	NotKnownHost:         "NotKnownHost",
	QueryRemotelyUnknown: "QueryRemotelyUnknown",
	FileNotFound:         "FileNotFound",
	CommandNotFound:      "CommandNotFound",
	Running:              "Running",
}

// String returns the symbolic name of the code.
func (c ErrorCode) String() string {
	if n, ok := codeNames[c]; ok {
		return n
	}
	return fmt.Sprintf("ErrorCode(%q)", rune(c))
}

// Code returns the single-rune wire form.
func (c ErrorCode) Code() string { return string(rune(c)) }

// IsSuccess reports whether the code marks a step that completed
// normally.  Warning is not a success code: it is reported on its own.
func (c ErrorCode) IsSuccess() bool {
	switch c {
	case InitOk, PreProcessingOk, TransferOk, PostProcessingOk, CompleteOk, Running:
		return true
	}
	return false
}

// MarshalText encodes the code as its single rune.
func (c ErrorCode) MarshalText() ([]byte, error) {
	return []byte(c.Code()), nil
}

// UnmarshalText decodes a single-rune code.  Unknown runes are kept
// as-is so newer peers do not break older clients.
func (c *ErrorCode) UnmarshalText(b []byte) error {
	r := []rune(string(b))
	if len(r) != 1 {
		return fmt.Errorf("error code %q: want exactly one rune", b)
	}
	*c = ErrorCode(r[0])
	return nil
}
