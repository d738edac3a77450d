package core

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"r66client/internal/outcome"
)

var (
	okColor   = color.New(color.FgGreen, color.Bold)
	warnColor = color.New(color.FgYellow, color.Bold)
	failColor = color.New(color.FgRed, color.Bold)
)

func colorFor(k outcome.Kind) *color.Color {
	switch k {
	case outcome.KindSuccess:
		return okColor
	case outcome.KindWarning:
		return warnColor
	default:
		return failColor
	}
}

// writeReport prints one rendered outcome.  In text mode the status
// line is coloured when out is a terminal; fatih/color turns itself
// off otherwise.
func writeReport(out io.Writer, html bool, k outcome.Kind, text string) {
	if html {
		fmt.Fprintln(out, text)
		return
	}
	head, rest, found := strings.Cut(text, "\n")
	colorFor(k).Fprint(out, head)
	if found {
		fmt.Fprint(out, "\n"+rest)
	}
	fmt.Fprintln(out)
}
