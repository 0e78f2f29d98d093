// Package klog writes formatted log lines through a machine.Machine's
// debug channel. There is no buffering, no log levels beyond a single
// prefix tag, and no structured fields: every kernel log line this
// system produces is a short, synchronous, interrupt-masked write,
// matching how the rest of the kernel core treats the debug UART as a
// single serialization point rather than a general-purpose console.
package klog

import (
	"fmt"

	"github.com/OsirisRTOS/osiris-sub000/internal/machine"
)

// Logger writes tagged lines to a machine's debug channel.
type Logger struct {
	m machine.Machine
}

// New wraps m as a Logger.
func New(m machine.Machine) *Logger {
	return &Logger{m: m}
}

func (l *Logger) write(tag, format string, args ...any) {
	line := fmt.Sprintf("[%s] %s\n", tag, fmt.Sprintf(format, args...))
	l.m.Print([]byte(line))
}

func (l *Logger) Info(format string, args ...any)  { l.write("info", format, args...) }
func (l *Logger) Warn(format string, args ...any)  { l.write("warn", format, args...) }
func (l *Logger) Error(format string, args ...any) { l.write("error", format, args...) }

// Panic formats a fatal boot-time failure banner and halts by
// panicking, matching the propagation policy that any failure crossing
// the boot-time boundary is fatal.
func (l *Logger) Panic(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	l.write("panic", "%s", msg)
	panic(msg)
}
