package monitor

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type sizer struct {
	n   int
	err error
}

func (s sizer) Size() (int, error) { return s.n, s.err }

func TestMonitorReportsStates(t *testing.T) {
	up := PingFunc(func(context.Context) error { return nil })
	down := PingFunc(func(context.Context) error { return errors.New("refused") })

	m := New(up, down, sizer{n: 4}, 0, nil)
	st := m.GetStatus()
	require.Equal(t, StateUp, st.PostgreSQL)
	require.Equal(t, StateDown, st.Redis)
	require.Equal(t, StateUp, st.Buffer)
	require.Equal(t, 4, st.BufferSize)
	require.True(t, m.IsOnline())
	require.False(t, st.Healthy())
}

func TestMonitorDisabledDependencies(t *testing.T) {
	m := New(nil, nil, nil, 0, nil)
	st := m.GetStatus()
	require.Equal(t, StateDisabled, st.PostgreSQL)
	require.Equal(t, StateDisabled, st.Redis)
	require.Equal(t, StateDisabled, st.Buffer)
	require.True(t, st.Healthy())
	require.False(t, m.IsOnline())
	m.Stop()
	m.Stop()
}
