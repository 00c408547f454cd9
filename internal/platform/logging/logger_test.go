package logging

import (
	"testing"

	"go.uber.org/zap"
)

func TestInit_Levels(t *testing.T) {
	t.Parallel()

	cases := []struct {
		level string
		env   string
		want  zap.AtomicLevel
	}{
		{"debug", "dev", zap.NewAtomicLevelAt(zap.DebugLevel)},
		{"WARN", "prod", zap.NewAtomicLevelAt(zap.WarnLevel)},
		{"nonsense", "dev", zap.NewAtomicLevelAt(zap.InfoLevel)},
	}
	for _, tc := range cases {
		l, err := Init(tc.level, tc.env)
		if err != nil {
			t.Fatalf("Init(%q,%q) err=%v", tc.level, tc.env, err)
		}
		if l.Level.Level() != tc.want.Level() {
			t.Fatalf("Init(%q) level=%v, want %v", tc.level, l.Level.Level(), tc.want.Level())
		}
		if l.Base == nil || l.Closer == nil {
			t.Fatalf("Init returned incomplete logger")
		}
	}
}
