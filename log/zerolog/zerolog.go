package zerolog

import (
	"github.com/rs/zerolog"

	"github.com/unkn0wn-root/collcache"
)

var _ collcache.Logger = Logger{}

type Logger struct{ L zerolog.Logger }

func (z Logger) Debug(msg string, f collcache.Fields) { emit(z.L.Debug(), msg, f) }
func (z Logger) Info(msg string, f collcache.Fields)  { emit(z.L.Info(), msg, f) }
func (z Logger) Warn(msg string, f collcache.Fields)  { emit(z.L.Warn(), msg, f) }
func (z Logger) Error(msg string, f collcache.Fields) { emit(z.L.Error(), msg, f) }

func emit(e *zerolog.Event, msg string, f collcache.Fields) {
	if len(f) > 0 {
		e = e.Fields(map[string]any(f))
	}
	e.Msg(msg)
}
