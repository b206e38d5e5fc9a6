package backend

import (
	"strings"

	"github.com/rs/zerolog/log"
)

// badgerLogger routes BadgerDB's internal logging through zerolog. Badger is
// chatty at the info level, so info messages are demoted to debug.
type badgerLogger struct{}

func (badgerLogger) Errorf(format string, args ...interface{}) {
	log.Error().Str("component", "badger").Msgf(strings.TrimSpace(format), args...)
}

func (badgerLogger) Warningf(format string, args ...interface{}) {
	log.Warn().Str("component", "badger").Msgf(strings.TrimSpace(format), args...)
}

func (badgerLogger) Infof(format string, args ...interface{}) {
	log.Debug().Str("component", "badger").Msgf(strings.TrimSpace(format), args...)
}

func (badgerLogger) Debugf(format string, args ...interface{}) {
	log.Trace().Str("component", "badger").Msgf(strings.TrimSpace(format), args...)
}
