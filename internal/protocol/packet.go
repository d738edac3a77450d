// Package protocol defines the packets exchanged with a remote transfer
// peer.  Every packet is a JSON envelope carrying a type tag, a
// correlation id and a typed payload; framing is the transport's job.
package protocol

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// HostID names a remote transfer endpoint.
type HostID = string

// RuleID names a transfer policy known to the remote peer.
type RuleID = string

// IllegalValue is the "unset" sentinel for transfer ids.
const IllegalValue int64 = -1

// ── Reference constants ──────────────────────────────────────────────

const (
	TestHeader = "MSG"
	TestMiddle = "TestConnection"
	TestCount  = 100

	// DefaultBlockSize is the data block size used for direct transfers.
	DefaultBlockSize = 64 * 1024
)

// Type tags a packet.
type Type string

const (
	TypeTest        Type = "test"
	TypeValid       Type = "valid"
	TypeRequest     Type = "request"
	TypeData        Type = "data"
	TypeEndTransfer Type = "endtransfer"
	TypeEndRequest  Type = "endrequest"
	TypeError       Type = "error"
)

// Packet is the envelope written to the wire.
type Packet struct {
	Type    Type            `json:"type"`
	ID      string          `json:"id"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// New builds a packet, encoding payload as JSON.
func New(t Type, id string, payload any) (*Packet, error) {
	p := &Packet{Type: t, ID: id}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s payload: %w", t, err)
		}
		p.Payload = raw
	}
	return p, nil
}

// Decode unmarshals the payload into v.
func (p *Packet) Decode(v any) error {
	if len(p.Payload) == 0 {
		return fmt.Errorf("%s packet has no payload", p.Type)
	}
	if err := json.Unmarshal(p.Payload, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", p.Type, err)
	}
	return nil
}

// ── Payloads ─────────────────────────────────────────────────────────

// Test is a lightweight connectivity exchange.
type Test struct {
	Header string `json:"header"`
	Middle string `json:"middle"`
	Count  int    `json:"count"`
}

// Valid acknowledges a request.  Runner is set when the peer accepted
// a transfer request.
type Valid struct {
	Header string  `json:"header"`
	Middle string  `json:"middle,omitempty"`
	Runner *Runner `json:"runner,omitempty"`
}

// Request asks the peer to start a transfer under Rule.
type Request struct {
	Rule      RuleID `json:"rule"`
	Filename  string `json:"filename"`
	Info      string `json:"info,omitempty"`
	BlockSize int    `json:"block_size"`
	Checksum  bool   `json:"checksum"`
	SpecialID int64  `json:"special_id"`
	Size      int64  `json:"size"`
}

// Data carries one block of file content.  Hash is the hex MD5 of the
// block when checksums are on.
type Data struct {
	Rank  int    `json:"rank"`
	Block []byte `json:"block"`
	Hash  string `json:"hash,omitempty"`
}

// EndTransfer closes the data phase.  Hash covers the whole file.
type EndTransfer struct {
	Hash string `json:"hash,omitempty"`
}

// EndRequest reports the final state of a request.
type EndRequest struct {
	Runner Runner          `json:"runner"`
	File   *FileDescriptor `json:"file,omitempty"`
}

// Error is a negative answer from the peer.  Runner is nil when the
// peer never created a record for the request.
type Error struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Runner  *Runner   `json:"runner,omitempty"`
}

// ── Runner & file ────────────────────────────────────────────────────

// Runner is the peer's execution record for a transfer.
type Runner struct {
	SpecialID int64     `json:"special_id"`
	Rule      RuleID    `json:"rule"`
	Filename  string    `json:"filename"`
	Step      string    `json:"step"`
	Rank      int       `json:"rank"`
	Status    ErrorCode `json:"status"`
	ErrorInfo ErrorCode `json:"error_info"`
	Info      string    `json:"info,omitempty"`
	Start     time.Time `json:"start"`
	Stop      time.Time `json:"stop"`
}

// Short renders the runner on a few lines joined by sep.
func (r *Runner) Short(sep string) string {
	if r == nil {
		return "no runner"
	}
	lines := []string{
		"Run: " + strconv.FormatInt(r.SpecialID, 10) + " Rule: " + r.Rule,
		"File: " + r.Filename + " Rank: " + strconv.Itoa(r.Rank),
		"Step: " + r.Step + " Status: " + r.Status.String() + " Info: " + r.ErrorInfo.String(),
	}
	if r.Info != "" {
		lines = append(lines, "Transfer info: "+r.Info)
	}
	return strings.Join(lines, sep)
}

// FileDescriptor describes the file as stored by the peer.
type FileDescriptor struct {
	Path string `json:"path"`
	Size int64  `json:"size"`
	Hash string `json:"hash,omitempty"`
}

func (f *FileDescriptor) String() string {
	if f == nil {
		return "no file"
	}
	s := fmt.Sprintf("%s (%d bytes)", f.Path, f.Size)
	if f.Hash != "" {
		s += " md5:" + f.Hash
	}
	return s
}
