package server

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeServer struct {
	name     string
	startErr error
	log      *[]string
}

func (f *fakeServer) Name() string { return f.name }

func (f *fakeServer) Start(context.Context) error {
	if f.startErr != nil {
		return f.startErr
	}
	*f.log = append(*f.log, "start "+f.name)
	return nil
}

func (f *fakeServer) Stop(context.Context) error {
	*f.log = append(*f.log, "stop "+f.name)
	return nil
}

func TestRunStopsInReverseOrder(t *testing.T) {
	var log []string
	m := NewManager(time.Second)
	m.AddServer(&fakeServer{name: "a", log: &log})
	m.AddServer(&fakeServer{name: "b", log: &log})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, m.Run(ctx))
	assert.Equal(t, []string{"start a", "start b", "stop b", "stop a"}, log)
}

func TestStartFailureRollsBack(t *testing.T) {
	var log []string
	m := NewManager(time.Second)
	m.AddServer(&fakeServer{name: "a", log: &log})
	m.AddServer(&fakeServer{name: "b", log: &log, startErr: errors.New("port in use")})

	err := m.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "start b")
	assert.Equal(t, []string{"start a", "stop a"}, log)
}
