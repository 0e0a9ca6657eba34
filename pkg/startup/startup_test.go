package startup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var silentLogger = ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})

type recorder struct {
	events []string
}

func (r *recorder) dependency(name string, requires ...string) Func {
	return Func{
		Name:     name,
		Requires: requires,
		StartFunc: func(context.Context) error {
			r.events = append(r.events, "start:"+name)
			return nil
		},
		StopFunc: func(context.Context) error {
			r.events = append(r.events, "stop:"+name)
			return nil
		},
	}
}

func TestStartOrder(t *testing.T) {
	rec := &recorder{}
	s := NewStartup(silentLogger, 1)
	s.AddDependency(rec.dependency("sql-sink", "redis"))
	s.AddDependency(rec.dependency("redis"))
	s.AddDependency(rec.dependency("kafka"))

	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, []string{"start:redis", "start:sql-sink", "start:kafka"}, rec.events)
	assert.Equal(t, StartupStatusStarted, s.Status("redis"))

	rec.events = nil
	require.NoError(t, s.Stop(context.Background()))
	assert.Equal(t, []string{"stop:kafka", "stop:sql-sink", "stop:redis"}, rec.events)
	assert.Equal(t, StartupStatusStopped, s.Status("redis"))
	assert.True(t, s.Has("kafka"))
	assert.False(t, s.Has("mongo"))
}

func TestStartRetries(t *testing.T) {
	attempts := 0
	s := NewStartup(silentLogger, 3).WithBackoffUnit(time.Millisecond)
	s.AddDependency(Func{
		Name: "flaky",
		StartFunc: func(context.Context) error {
			attempts++
			if attempts < 3 {
				return errors.New("not yet")
			}
			return nil
		},
	})

	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, 3, attempts)
}

func TestStartGivesUp(t *testing.T) {
	s := NewStartup(silentLogger, 2).WithBackoffUnit(time.Millisecond)
	s.AddDependency(Func{
		Name:      "down",
		StartFunc: func(context.Context) error { return errors.New("connection refused") },
	})

	err := s.Start(context.Background())
	assert.ErrorContains(t, err, "startup failed after 2 attempts")
	assert.ErrorContains(t, err, "connection refused")
	assert.Equal(t, StartupStatusFailed, s.Status("down"))
}

func TestStartUnknownDependency(t *testing.T) {
	s := NewStartup(silentLogger, 1)
	s.AddDependency(Func{Name: "sink", Requires: []string{"missing"}})

	err := s.Start(context.Background())
	assert.ErrorContains(t, err, "unknown dependency 'missing'")
}

func TestStartCycle(t *testing.T) {
	s := NewStartup(silentLogger, 1)
	s.AddDependency(Func{Name: "a", Requires: []string{"b"}})
	s.AddDependency(Func{Name: "b", Requires: []string{"a"}})

	assert.ErrorContains(t, s.Start(context.Background()), "dependency cycle")
}

func TestStopContinuesAfterError(t *testing.T) {
	rec := &recorder{}
	s := NewStartup(silentLogger, 1)
	s.AddDependency(rec.dependency("first"))
	s.AddDependency(Func{Name: "second", StopFunc: func(context.Context) error { return errors.New("stuck") }})

	require.NoError(t, s.Start(context.Background()))
	err := s.Stop(context.Background())
	assert.ErrorContains(t, err, "stuck")
	assert.Contains(t, rec.events, "stop:first")
}
