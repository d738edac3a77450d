// Package report renders outcomes as multi-line text.  Rendering is
// pure: the same outcome always yields the same string and inputs are
// never modified.
package report

import (
	"html"
	"strconv"
	"strings"

	"r66client/internal/outcome"
	"r66client/internal/protocol"
)

// Line separators.  Continuation lines are indented by four spaces.
const (
	TextSep = "\n    "
	HTMLSep = "<br>    "
)

type renderer struct {
	sep    string
	escape func(string) string
}

var (
	plain  = renderer{sep: TextSep, escape: func(s string) string { return s }}
	markup = renderer{sep: HTMLSep, escape: html.EscapeString}
)

// with returns a renderer joining lines by sep.  Values are escaped
// whenever sep is [HTMLSep].
func with(sep string) renderer {
	if sep == HTMLSep {
		return renderer{sep: sep, escape: markup.escape}
	}
	return renderer{sep: sep, escape: plain.escape}
}

// Transfer renders o with lines joined by sep.
func Transfer(o outcome.Transfer, sep string) string {
	return with(sep).transfer(o)
}

// Connectivity renders o with lines joined by sep.
func Connectivity(o outcome.Connectivity, sep string) string {
	return with(sep).connectivity(o)
}

// TransferText renders o for a terminal.
func TransferText(o outcome.Transfer) string { return plain.transfer(o) }

// TransferHTML renders o as an HTML fragment with escaped values.
func TransferHTML(o outcome.Transfer) string { return "<html>" + markup.transfer(o) }

// ConnectivityText renders o for a terminal.
func ConnectivityText(o outcome.Connectivity) string { return plain.connectivity(o) }

// ConnectivityHTML renders o as an HTML fragment with escaped values.
func ConnectivityHTML(o outcome.Connectivity) string { return "<html>" + markup.connectivity(o) }

func (r renderer) transfer(o outcome.Transfer) string {
	var b strings.Builder
	switch v := o.(type) {
	case outcome.Success:
		r.completed(&b, "SUCCESS", v.Runner, v.Host, v.File, v.Elapsed.Milliseconds())
	case outcome.Warning:
		if v.Cause != nil {
			r.failed(&b, "Transfer is WARNED", v.Runner, v.Host, v.Cause)
		} else {
			r.completed(&b, "WARNED", v.Runner, v.Host, v.File, v.Elapsed.Milliseconds())
		}
	case outcome.Failure:
		if v.Runner == nil {
			b.WriteString("Transfer in FAILURE with no Id")
			b.WriteString(r.sep + "REMOTE: " + r.escape(v.Host) + "     " + r.escape(cause(v.Cause)))
		} else {
			r.failed(&b, "Transfer in FAILURE", v.Runner, v.Host, v.Cause)
		}
	default:
		b.WriteString("UNKNOWN OUTCOME")
	}
	return b.String()
}

func (r renderer) completed(b *strings.Builder, label string, run *protocol.Runner, host string, file *protocol.FileDescriptor, ms int64) {
	b.WriteString(label)
	b.WriteString(r.sep + r.runner(run))
	b.WriteString(r.sep + "REMOTE: " + r.escape(host) + "    " + r.escape(file.String()))
	b.WriteString("    delay: " + strconv.FormatInt(ms, 10) + " ms")
}

func (r renderer) failed(b *strings.Builder, label string, run *protocol.Runner, host string, err error) {
	b.WriteString(label)
	b.WriteString(r.sep + r.runner(run))
	b.WriteString(r.sep + "REMOTE: " + r.escape(host) + "    " + r.escape(cause(err)))
}

func (r renderer) runner(run *protocol.Runner) string {
	if run == nil {
		return r.escape(run.Short(r.sep))
	}
	lines := strings.Split(run.Short("\n"), "\n")
	for i := range lines {
		lines[i] = r.escape(lines[i])
	}
	return strings.Join(lines, r.sep)
}

func (r renderer) connectivity(o outcome.Connectivity) string {
	switch v := o.(type) {
	case outcome.ProbeSuccess:
		return "Test Message    SUCCESS" + r.sep + r.escape(v.Header)
	case outcome.ProbeFailure:
		return "Test Message    FAILURE" + r.sep + r.escape(cause(v.Cause))
	default:
		return "Test Message    UNKNOWN"
	}
}

func cause(err error) string {
	if err == nil {
		return "no cause"
	}
	return err.Error()
}
