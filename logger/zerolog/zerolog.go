// Package zerolog adapts zerolog to the core.Logger interface with a
// colored console writer for interactive use.
package zerolog

import (
	"fmt"
	"os"
	"strings"

	"github.com/google/goterm/term"
	"github.com/rs/zerolog"

	"github.com/solvirx/tokenwatch/core"
)

// Adapter wraps a zerolog.Logger behind core.Logger.
type Adapter struct {
	logger zerolog.Logger
}

// New creates a console logger at the given level. When json is true the raw
// zerolog JSON output is kept, otherwise lines go through the colored
// console writer.
func New(level, timeLayout string, colored, json bool) (*Adapter, error) {
	logMode, err := zerolog.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("failed to parse log level: %w", err)
	}
	zerolog.SetGlobalLevel(logMode)

	var logger zerolog.Logger
	if json {
		logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	} else {
		output := zerolog.ConsoleWriter{
			Out:         os.Stdout,
			NoColor:     !colored,
			TimeFormat:  timeLayout,
			FormatLevel: formatLevel,
			FormatTimestamp: func(i any) string {
				return term.Cyanf("[%s]", i)
			},
		}
		logger = zerolog.New(output).With().Timestamp().Logger()
	}

	return &Adapter{logger: logger}, nil
}

// NewAdapter wraps an existing zerolog logger.
func NewAdapter(logger zerolog.Logger) *Adapter {
	return &Adapter{logger: logger}
}

func formatLevel(i any) string {
	level, ok := i.(string)
	if !ok {
		return term.Whitef("[UNK]")
	}

	switch level {
	case zerolog.LevelTraceValue:
		return term.Cyanf("[TRC]")
	case zerolog.LevelDebugValue:
		return term.Cyanf("[DBG]")
	case zerolog.LevelInfoValue:
		return term.Greenf("[INF]")
	case zerolog.LevelWarnValue:
		return term.Yellowf("[WAR]")
	case zerolog.LevelErrorValue:
		return term.Redf("[ERR]")
	case zerolog.LevelFatalValue:
		return term.Redf("[FTL]")
	case zerolog.LevelPanicValue:
		return term.Redf("[PAN]")
	default:
		return term.Whitef("[%s]", strings.ToUpper(level))
	}
}

// WithField implements core.Logger.
func (a *Adapter) WithField(key string, value any) core.Logger {
	return &Adapter{logger: a.logger.With().Interface(key, value).Logger()}
}

// WithFields implements core.Logger.
func (a *Adapter) WithFields(fields map[string]any) core.Logger {
	return &Adapter{logger: a.logger.With().Fields(fields).Logger()}
}

// WithError implements core.Logger.
func (a *Adapter) WithError(err error) core.Logger {
	return &Adapter{logger: a.logger.With().Err(err).Logger()}
}

func (a *Adapter) Print(args ...any) { a.logger.Print(args...) }
func (a *Adapter) Trace(args ...any) { a.logger.Trace().Msg(fmt.Sprint(args...)) }
func (a *Adapter) Debug(args ...any) { a.logger.Debug().Msg(fmt.Sprint(args...)) }
func (a *Adapter) Info(args ...any)  { a.logger.Info().Msg(fmt.Sprint(args...)) }
func (a *Adapter) Warn(args ...any)  { a.logger.Warn().Msg(fmt.Sprint(args...)) }
func (a *Adapter) Error(args ...any) { a.logger.Error().Msg(fmt.Sprint(args...)) }
func (a *Adapter) Fatal(args ...any) { a.logger.Fatal().Msg(fmt.Sprint(args...)) }
func (a *Adapter) Panic(args ...any) { a.logger.Panic().Msg(fmt.Sprint(args...)) }

func (a *Adapter) Printf(format string, args ...any) { a.logger.Printf(format, args...) }
func (a *Adapter) Tracef(format string, args ...any) { a.logger.Trace().Msgf(format, args...) }
func (a *Adapter) Debugf(format string, args ...any) { a.logger.Debug().Msgf(format, args...) }
func (a *Adapter) Infof(format string, args ...any)  { a.logger.Info().Msgf(format, args...) }
func (a *Adapter) Warnf(format string, args ...any)  { a.logger.Warn().Msgf(format, args...) }
func (a *Adapter) Errorf(format string, args ...any) { a.logger.Error().Msgf(format, args...) }
func (a *Adapter) Fatalf(format string, args ...any) { a.logger.Fatal().Msgf(format, args...) }
func (a *Adapter) Panicf(format string, args ...any) { a.logger.Panic().Msgf(format, args...) }

// SetLevel implements core.Logger.
func (a *Adapter) SetLevel(level core.Level) {
	zerolog.SetGlobalLevel(toZerologLevel(level))
}

// GetLevel implements core.Logger.
func (a *Adapter) GetLevel() core.Level {
	return toLevel(a.logger.GetLevel())
}

func toLevel(level zerolog.Level) core.Level {
	switch level {
	case zerolog.Disabled:
		return core.Disabled
	case zerolog.TraceLevel:
		return core.TraceLevel
	case zerolog.DebugLevel:
		return core.DebugLevel
	case zerolog.InfoLevel:
		return core.InfoLevel
	case zerolog.WarnLevel:
		return core.WarnLevel
	case zerolog.ErrorLevel:
		return core.ErrorLevel
	case zerolog.FatalLevel:
		return core.FatalLevel
	case zerolog.PanicLevel:
		return core.PanicLevel
	default:
		return core.NoLevel
	}
}

func toZerologLevel(level core.Level) zerolog.Level {
	switch level {
	case core.Disabled:
		return zerolog.Disabled
	case core.TraceLevel:
		return zerolog.TraceLevel
	case core.DebugLevel:
		return zerolog.DebugLevel
	case core.InfoLevel:
		return zerolog.InfoLevel
	case core.WarnLevel:
		return zerolog.WarnLevel
	case core.ErrorLevel:
		return zerolog.ErrorLevel
	case core.FatalLevel:
		return zerolog.FatalLevel
	case core.PanicLevel:
		return zerolog.PanicLevel
	default:
		return zerolog.NoLevel
	}
}
