// Package peer is a minimal in-process transfer responder for tests.
// It speaks the client's packet protocol over newline-delimited JSON
// or WebSocket on a loopback listener, in the spirit of httptest.
package peer

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"r66client/internal/protocol"
	"r66client/internal/transport"
)

// Behavior selects how the peer answers a transfer request.
type Behavior int

const (
	// Accept stores the file and reports CompleteOk.
	Accept Behavior = iota
	// AcceptWarn stores the file but flags the runner with Warning.
	AcceptWarn
	// FailWarn answers the end of transfer with a Warning error.
	FailWarn
	// Fail answers the end of transfer with a TransferError.
	Fail
	// Drop closes the connection after accepting the request.
	Drop
	// Stall accepts the request and never answers again.
	Stall
)

// Server is a running responder.
type Server struct {
	// Rules maps accepted rule ids to behaviours.  Requests for any
	// other rule are refused without a runner.
	Rules map[protocol.RuleID]Behavior

	ln      net.Listener
	httpSrv *http.Server
	wg      sync.WaitGroup
	nextID  atomic.Int64
	refuse  atomic.Bool

	mu       sync.Mutex
	conns    map[transport.PacketConn]bool
	files    map[string][]byte
	tests    int
	requests int
	closed   bool
}

// NewServer starts a stream responder on 127.0.0.1.
func NewServer(rules map[protocol.RuleID]Behavior) (*Server, error) {
	s := newServer(rules)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}
	s.ln = ln
	s.wg.Add(1)
	go s.acceptLoop()
	return s, nil
}

// NewWebSocketServer starts a WebSocket responder on 127.0.0.1 that
// upgrades requests on path.
func NewWebSocketServer(path string, rules map[protocol.RuleID]Behavior) (*Server, error) {
	s := newServer(rules)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}
	s.ln = ln

	mux := http.NewServeMux()
	mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		pc, err := transport.UpgradeWebSocket(w, r)
		if err != nil {
			return
		}
		s.serve(pc)
	})
	s.httpSrv = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		_ = s.httpSrv.Serve(ln)
	}()
	return s, nil
}

func newServer(rules map[protocol.RuleID]Behavior) *Server {
	if rules == nil {
		rules = map[protocol.RuleID]Behavior{}
	}
	return &Server{
		Rules: rules,
		conns: make(map[transport.PacketConn]bool),
		files: make(map[string][]byte),
	}
}

// RefuseTests makes the server answer test packets with an error.
func (s *Server) RefuseTests(on bool) { s.refuse.Store(on) }

// Addr returns the listener address.
func (s *Server) Addr() string { return s.ln.Addr().String() }

// Received returns the content stored for filename.
func (s *Server) Received(filename string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.files[filename]
	return b, ok
}

// Counts returns the number of test packets and transfer requests seen.
func (s *Server) Counts() (tests, requests int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tests, s.requests
}

// Close stops the listener and drops every open connection.
func (s *Server) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	for pc := range s.conns {
		pc.Close()
	}
	s.mu.Unlock()

	if s.httpSrv != nil {
		s.httpSrv.Close()
	} else {
		s.ln.Close()
	}
	s.wg.Wait()
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.serve(transport.NewStreamConn(conn))
		}()
	}
}

func (s *Server) track(pc transport.PacketConn, on bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if on && s.closed {
		return false
	}
	if on {
		s.conns[pc] = true
	} else {
		delete(s.conns, pc)
	}
	return true
}

// transfer is the state of an accepted request on one connection.
type transfer struct {
	id       string
	behavior Behavior
	runner   protocol.Runner
	checksum bool
	buf      bytes.Buffer
	badBlock bool
}

func (s *Server) serve(pc transport.PacketConn) {
	if !s.track(pc, true) {
		pc.Close()
		return
	}
	defer func() {
		s.track(pc, false)
		pc.Close()
	}()

	var cur *transfer
	for {
		p, err := pc.ReadPacket()
		if err != nil {
			return
		}
		switch p.Type {
		case protocol.TypeTest:
			if !s.handleTest(pc, p) {
				return
			}
		case protocol.TypeRequest:
			cur = s.handleRequest(pc, p)
			if cur != nil && cur.behavior == Drop {
				return
			}
		case protocol.TypeData:
			if cur != nil {
				s.handleData(cur, p)
			}
		case protocol.TypeEndTransfer:
			if cur != nil {
				if !s.handleEnd(pc, cur, p) {
					return
				}
				cur = nil
			}
		default:
			reply(pc, protocol.TypeError, p.ID, protocol.Error{
				Code:    protocol.Unimplemented,
				Message: "unexpected " + string(p.Type),
			})
		}
	}
}

func (s *Server) handleTest(pc transport.PacketConn, p *protocol.Packet) bool {
	s.mu.Lock()
	s.tests++
	s.mu.Unlock()

	var t protocol.Test
	if err := p.Decode(&t); err != nil {
		return reply(pc, protocol.TypeError, p.ID, protocol.Error{Code: protocol.Internal, Message: err.Error()})
	}
	if s.refuse.Load() {
		return reply(pc, protocol.TypeError, p.ID, protocol.Error{Code: protocol.BadAuthent, Message: "test refused"})
	}
	return reply(pc, protocol.TypeValid, p.ID, protocol.Valid{Header: t.Header, Middle: t.Middle})
}

func (s *Server) handleRequest(pc transport.PacketConn, p *protocol.Packet) *transfer {
	s.mu.Lock()
	s.requests++
	s.mu.Unlock()

	var req protocol.Request
	if err := p.Decode(&req); err != nil {
		reply(pc, protocol.TypeError, p.ID, protocol.Error{Code: protocol.Internal, Message: err.Error()})
		return nil
	}
	behavior, ok := s.Rules[req.Rule]
	if !ok {
		reply(pc, protocol.TypeError, p.ID, protocol.Error{
			Code:    protocol.QueryRemotelyUnknown,
			Message: "rule not found: " + req.Rule,
		})
		return nil
	}

	t := &transfer{
		id:       p.ID,
		behavior: behavior,
		checksum: req.Checksum,
		runner: protocol.Runner{
			SpecialID: s.nextID.Add(1),
			Rule:      req.Rule,
			Filename:  req.Filename,
			Step:      "transfer",
			Status:    protocol.Running,
			ErrorInfo: protocol.InitOk,
			Info:      req.Info,
			Start:     time.Now(),
		},
	}
	if behavior != Drop {
		r := t.runner
		reply(pc, protocol.TypeValid, p.ID, protocol.Valid{Header: "request", Runner: &r})
	}
	return t
}

func (s *Server) handleData(t *transfer, p *protocol.Packet) {
	var d protocol.Data
	if err := p.Decode(&d); err != nil {
		t.badBlock = true
		return
	}
	if t.checksum && d.Hash != md5Hex(d.Block) {
		t.badBlock = true
	}
	t.buf.Write(d.Block)
	t.runner.Rank = d.Rank + 1
}

func (s *Server) handleEnd(pc transport.PacketConn, t *transfer, p *protocol.Packet) bool {
	if t.behavior == Stall {
		return true
	}

	var end protocol.EndTransfer
	_ = p.Decode(&end)
	data := t.buf.Bytes()
	sum := md5Hex(data)

	t.runner.Stop = time.Now()
	r := t.runner
	if t.checksum && (t.badBlock || end.Hash != sum) {
		r.Status = protocol.MD5Error
		r.ErrorInfo = protocol.MD5Error
		return reply(pc, protocol.TypeError, t.id, protocol.Error{Code: protocol.MD5Error, Message: "checksum mismatch", Runner: &r})
	}

	switch t.behavior {
	case FailWarn:
		r.Status = protocol.Warning
		r.ErrorInfo = protocol.Warning
		return reply(pc, protocol.TypeError, t.id, protocol.Error{Code: protocol.Warning, Message: "post task warned", Runner: &r})
	case Fail:
		r.Status = protocol.TransferError
		r.ErrorInfo = protocol.TransferError
		return reply(pc, protocol.TypeError, t.id, protocol.Error{Code: protocol.TransferError, Message: "storage refused", Runner: &r})
	}

	s.mu.Lock()
	s.files[r.Filename] = append([]byte(nil), data...)
	s.mu.Unlock()

	r.Step = "done"
	r.Status = protocol.CompleteOk
	r.ErrorInfo = protocol.CompleteOk
	if t.behavior == AcceptWarn {
		r.ErrorInfo = protocol.Warning
	}
	return reply(pc, protocol.TypeEndRequest, t.id, protocol.EndRequest{
		Runner: r,
		File:   &protocol.FileDescriptor{Path: "/in/" + r.Filename, Size: int64(len(data)), Hash: sum},
	})
}

func reply(pc transport.PacketConn, t protocol.Type, id string, payload any) bool {
	p, err := protocol.New(t, id, payload)
	if err != nil {
		return false
	}
	return pc.WritePacket(p) == nil
}

func md5Hex(b []byte) string {
	sum := md5.Sum(b)
	return hex.EncodeToString(sum[:])
}
