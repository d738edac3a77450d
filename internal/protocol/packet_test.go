package protocol

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestPacket_DecodeTyped(t *testing.T) {
	p, err := New(TypeTest, "abc", Test{Header: TestHeader, Middle: TestMiddle, Count: TestCount})
	if err != nil {
		t.Fatal(err)
	}
	raw, err := json.Marshal(p)
	if err != nil {
		t.Fatal(err)
	}

	var back Packet
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatal(err)
	}
	if back.Type != TypeTest || back.ID != "abc" {
		t.Fatalf("envelope = %+v", back)
	}
	var tp Test
	if err := back.Decode(&tp); err != nil {
		t.Fatal(err)
	}
	if tp.Count != 100 || tp.Middle != "TestConnection" {
		t.Errorf("payload = %+v", tp)
	}
}

func TestPacket_DecodeEmpty(t *testing.T) {
	p := &Packet{Type: TypeValid}
	var v Valid
	if err := p.Decode(&v); err == nil {
		t.Fatal("expected error for missing payload")
	}
}

func TestErrorCode_WireForm(t *testing.T) {
	raw, err := json.Marshal(Error{Code: Warning, Message: "late"})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(raw), `"code":"W"`) {
		t.Fatalf("wire form = %s", raw)
	}

	var e Error
	if err := json.Unmarshal(raw, &e); err != nil {
		t.Fatal(err)
	}
	if e.Code != Warning {
		t.Errorf("code = %v, want Warning", e.Code)
	}
}

func TestErrorCode_String(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want string
	}{
		{CompleteOk, "CompleteOk"},
		{Warning, "Warning"},
		{MD5Error, "MD5Error"},
		{ErrorCode('#'), `ErrorCode('#')`},
	}
	for _, tt := range tests {
		if got := tt.code.String(); got != tt.want {
			t.Errorf("%q.String() = %q, want %q", rune(tt.code), got, tt.want)
		}
	}
}

func TestErrorCode_UnmarshalRejectsLongCodes(t *testing.T) {
	var c ErrorCode
	if err := c.UnmarshalText([]byte("WW")); err == nil {
		t.Fatal("expected error")
	}
}

func TestRunner_Short(t *testing.T) {
	r := &Runner{SpecialID: 42, Rule: "send", Filename: "a.txt", Step: "transfer", Status: CompleteOk, ErrorInfo: Warning}
	got := r.Short(" | ")
	for _, want := range []string{"Run: 42", "Rule: send", "File: a.txt", "Info: Warning", " | "} {
		if !strings.Contains(got, want) {
			t.Errorf("Short() = %q, missing %q", got, want)
		}
	}

	var nilRunner *Runner
	if nilRunner.Short("\n") != "no runner" {
		t.Error("nil runner should render a placeholder")
	}
}

func TestFileDescriptor_String(t *testing.T) {
	var f *FileDescriptor
	if f.String() != "no file" {
		t.Errorf("nil descriptor = %q", f.String())
	}
	f = &FileDescriptor{Path: "/in/a.txt", Size: 3}
	if f.String() != "/in/a.txt (3 bytes)" {
		t.Errorf("descriptor = %q", f.String())
	}
}
