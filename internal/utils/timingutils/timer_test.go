package timingutils

import (
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
)

func TestGetDeferrableTimingLogger(t *testing.T) {
	hook := test.NewGlobal()
	defer hook.Reset()

	originalLevel := log.GetLevel()
	defer log.SetLevel(originalLevel)

	log.SetLevel(log.InfoLevel)
	GetDeferrableTimingLogger("silent")()
	assert.Empty(t, hook.AllEntries())

	log.SetLevel(log.DebugLevel)
	GetDeferrableTimingLogger("signer exchange")()
	if assert.Len(t, hook.AllEntries(), 1) {
		assert.Contains(t, hook.LastEntry().Message, "signer exchange: ")
	}
}
