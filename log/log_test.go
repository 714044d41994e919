package log

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"
)

type recorder struct{ lines []string }

func (r *recorder) Debugf(format string, args ...any) { r.add("DEBUG", format, args) }
func (r *recorder) Infof(format string, args ...any)  { r.add("INFO", format, args) }
func (r *recorder) Warnf(format string, args ...any)  { r.add("WARN", format, args) }
func (r *recorder) Errorf(format string, args ...any) { r.add("ERROR", format, args) }

func (r *recorder) add(lvl, format string, args []any) {
	r.lines = append(r.lines, lvl+" "+fmt.Sprintf(format, args...))
}

func TestSetLevel(t *testing.T) {
	t.Cleanup(func() { SetLevel(LevelInfo) })
	cases := []struct {
		in   string
		want zapcore.Level
	}{
		{LevelDebug, zapcore.DebugLevel},
		{"WARN", zapcore.WarnLevel},
		{LevelError, zapcore.ErrorLevel},
		{"bogus", zapcore.InfoLevel},
	}
	for _, c := range cases {
		SetLevel(c.in)
		assert.Equal(t, c.want, zapLevel.Level(), c.in)
	}
}

func TestHelpersUseDefault(t *testing.T) {
	old := Default
	rec := &recorder{}
	Default = rec
	t.Cleanup(func() { Default = old })

	Debugf("a %d", 1)
	Infof("b")
	Warnf("c %s", "x")
	Errorf("d")
	assert.Equal(t, []string{"DEBUG a 1", "INFO b", "WARN c x", "ERROR d"}, rec.lines)
}
