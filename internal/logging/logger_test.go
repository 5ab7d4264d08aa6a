package logging

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	log, err := New("commerce-api", "debug")
	require.NoError(t, err)
	assert.True(t, log.Core().Enabled(zapcore.DebugLevel))

	log, err = New("commerce-api", "")
	require.NoError(t, err)
	assert.False(t, log.Core().Enabled(zapcore.DebugLevel))
	assert.True(t, log.Core().Enabled(zapcore.InfoLevel))
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New("commerce-api", "chatty")
	require.Error(t, err)
}

type syncBuffer struct {
	bytes.Buffer
	syncs int
}

func (b *syncBuffer) Sync() error {
	b.syncs++
	return nil
}

func TestFinishFlushesBeforeExit(t *testing.T) {
	sink := &syncBuffer{}
	core := zapcore.NewCore(zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()), sink, zapcore.InfoLevel)
	log := zap.New(core)

	assert.Equal(t, 1, Finish(log, "api stopped", errors.New("listen: address in use")))
	assert.Equal(t, 1, sink.syncs)
	assert.Contains(t, sink.String(), `"level":"error"`)
	assert.Contains(t, sink.String(), "address in use")

	sink.Reset()
	assert.Equal(t, 0, Finish(log, "api stopped", nil))
	assert.Equal(t, 2, sink.syncs)
	assert.Empty(t, sink.String())
}
