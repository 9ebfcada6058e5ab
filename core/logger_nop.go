package core

// NopLogger discards everything. Useful as a default and in tests.
type NopLogger struct{}

// NewNopLogger returns a logger that discards all output.
func NewNopLogger() Logger { return NopLogger{} }

func (NopLogger) WithField(string, any) Logger    { return NopLogger{} }
func (NopLogger) WithFields(map[string]any) Logger { return NopLogger{} }
func (NopLogger) WithError(error) Logger           { return NopLogger{} }

func (NopLogger) Print(...any) {}
func (NopLogger) Trace(...any) {}
func (NopLogger) Debug(...any) {}
func (NopLogger) Info(...any)  {}
func (NopLogger) Warn(...any)  {}
func (NopLogger) Error(...any) {}
func (NopLogger) Fatal(...any) {}
func (NopLogger) Panic(...any) {}

func (NopLogger) Printf(string, ...any) {}
func (NopLogger) Tracef(string, ...any) {}
func (NopLogger) Debugf(string, ...any) {}
func (NopLogger) Infof(string, ...any)  {}
func (NopLogger) Warnf(string, ...any)  {}
func (NopLogger) Errorf(string, ...any) {}
func (NopLogger) Fatalf(string, ...any) {}
func (NopLogger) Panicf(string, ...any) {}

func (NopLogger) SetLevel(Level)  {}
func (NopLogger) GetLevel() Level { return Disabled }
