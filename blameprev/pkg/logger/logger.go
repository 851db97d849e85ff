package logger

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/sirupsen/logrus"
)

// Logger is the logging interface used by all blameprev packages. Args are key value pairs.
type Logger interface {
	Info(msg string, args ...interface{})
	Debug(msg string, args ...interface{})
	Error(msg string, args ...interface{})
}

type DefaultLogger struct {
	wr    io.Writer
	mu    sync.Mutex
	debug bool
}

// NewDefaultLogger writes plain text lines to wr. Debug lines are written only when debug is true.
func NewDefaultLogger(wr io.Writer, debug bool) Logger {
	s := &DefaultLogger{}
	s.wr = wr
	s.debug = debug
	return s
}

func (s *DefaultLogger) Info(msg string, args ...interface{}) {
	s.log("INFO", msg, args...)
}

func (s *DefaultLogger) Debug(msg string, args ...interface{}) {
	if !s.debug {
		return
	}
	s.log("DEBUG", msg, args...)
}

func (s *DefaultLogger) Error(msg string, args ...interface{}) {
	s.log("ERROR", msg, args...)
}

func (s *DefaultLogger) log(kind string, msg string, args ...interface{}) {
	write := func(format string, args ...interface{}) {
		s.mu.Lock()
		defer s.mu.Unlock()
		fmt.Fprintf(s.wr, format, args...)
		s.wr.Write([]byte("\n"))
	}
	kvs, err := formatArgs(args)
	if err != nil {
		write("ERROR Logger invalid args passed. Msg: %v Args: %v Err: %v", msg, args, err)
		return
	}
	write("%v %v %v", kind, msg, kvs)
}

type kv struct {
	K string
	V string
}

func formatArgs(args []interface{}) (res []kv, _ error) {
	if len(args)%2 != 0 {
		return nil, errors.New("len of args not even")
	}
	for i := 0; i < len(args); i += 2 {
		k, ok := args[i].(string)
		if !ok {
			return nil, errors.New("key arg passes in not a string")
		}
		v := fmt.Sprintf("%v", args[i+1])
		res = append(res, kv{k, v})
	}
	return
}

type nopLogger struct{}

// NewNopLogger returns a logger that drops everything.
func NewNopLogger() Logger {
	return nopLogger{}
}

func (nopLogger) Info(msg string, args ...interface{})  {}
func (nopLogger) Debug(msg string, args ...interface{}) {}
func (nopLogger) Error(msg string, args ...interface{}) {}

type logrusLogger struct {
	l *logrus.Logger
}

// NewLogrusLogger adapts a logrus logger. Key value args become logrus fields.
func NewLogrusLogger(l *logrus.Logger) Logger {
	return &logrusLogger{l: l}
}

func (s *logrusLogger) entry(args []interface{}) *logrus.Entry {
	kvs, err := formatArgs(args)
	if err != nil {
		return s.l.WithField("logger_err", err.Error())
	}
	fields := logrus.Fields{}
	for _, v := range kvs {
		fields[v.K] = v.V
	}
	return s.l.WithFields(fields)
}

func (s *logrusLogger) Info(msg string, args ...interface{}) {
	s.entry(args).Info(msg)
}

func (s *logrusLogger) Debug(msg string, args ...interface{}) {
	s.entry(args).Debug(msg)
}

func (s *logrusLogger) Error(msg string, args ...interface{}) {
	s.entry(args).Error(msg)
}
