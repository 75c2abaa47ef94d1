package utils

import (
	"fmt"
	"io"
)

// Logger is a nil-safe trace sink. Codecs keep a package level *Logger that
// stays nil unless tracing was requested.
type Logger struct {
	io.Writer
}

func (l *Logger) Println(a ...interface{}) {
	if l != nil {
		fmt.Fprintln(l, a...)
	}
}

func (l *Logger) Printf(format string, a ...interface{}) {
	if l != nil {
		fmt.Fprintf(l, format+"\n", a...)
	}
}
