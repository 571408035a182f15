package acquire

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/banshee-data/track.monitor/internal/motion"
	"github.com/banshee-data/track.monitor/internal/serialmux"
	"github.com/banshee-data/track.monitor/internal/session"
	"github.com/banshee-data/track.monitor/internal/timeutil"
	"github.com/banshee-data/track.monitor/internal/units"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMotion(t *testing.T) {
	raw, err := ParseMotion("ACC,1700000000123,0.1,-2.5,9.81")
	require.NoError(t, err)
	assert.Equal(t, int64(1700000000123), raw.Timestamp)
	require.NotNil(t, raw.Y)
	assert.Equal(t, -2.5, *raw.Y)

	raw, err = ParseMotion(`{"ts":5,"x":0.1,"y":0.2}`)
	require.NoError(t, err)
	assert.Nil(t, raw.Z)
	assert.Equal(t, int64(5), raw.Timestamp)

	raw, err = ParseMotion("ACC,,0.1,,9.8")
	require.NoError(t, err)
	assert.Nil(t, raw.Y)
	assert.Zero(t, raw.Timestamp)

	raw, err = ParseMotion("ACC,1")
	require.NoError(t, err)
	assert.Nil(t, raw.X)

	_, err = ParseMotion("ACC,abc,0,0,0")
	assert.ErrorIs(t, err, motion.ErrInvalidSample)
	_, err = ParseMotion("GYR,1,0,0,0")
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestParseNMEA(t *testing.T) {
	s, err := ParseNMEA("$GPRMC,123519,A,4807.038,N,01131.000,E,022.4,084.4,230394,003.1,W*6A")
	require.NoError(t, err)
	assert.Equal(t, "RMC", s.Type)

	obs, err := SpeedFromNMEA(s)
	require.NoError(t, err)
	assert.Equal(t, units.MPS, obs.Units)
	assert.InDelta(t, 22.4*0.514444, obs.Speed, 1e-9)

	_, err = ParseNMEA("$GPRMC,123519,A,4807.038,N,01131.000,E,022.4,084.4,230394,003.1,W*6B")
	assert.ErrorIs(t, err, ErrChecksum)

	s, err = ParseNMEA("$GPVTG,054.7,T,034.4,M,005.5,N,010.2,K*48")
	require.NoError(t, err)
	obs, err = SpeedFromNMEA(s)
	require.NoError(t, err)
	assert.Equal(t, units.KMPH, obs.Units)
	assert.Equal(t, 10.2, obs.Speed)

	s, err = ParseNMEA("$GNRMC,083559.00,V,,,,,,,091202,,,N*69")
	require.NoError(t, err)
	_, err = SpeedFromNMEA(s)
	assert.ErrorIs(t, err, ErrNoFix)

	s, err = ParseNMEA("$GNVTG,,T,,M,0.000,N,0.000,K,N*32")
	require.NoError(t, err)
	_, err = SpeedFromNMEA(s)
	assert.ErrorIs(t, err, ErrNoFix)

	s, err = ParseNMEA("$GPGGA,123519,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,*47")
	require.NoError(t, err)
	hdop, ok := HDOPFromGGA(s)
	assert.True(t, ok)
	assert.Equal(t, 0.9, hdop)
}

func TestSimulatedGPSChecksums(t *testing.T) {
	for _, line := range SimulatedGPS(90)(time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)) {
		s, err := ParseNMEA(line)
		require.NoError(t, err, line)
		if s.Type == "RMC" {
			obs, err := SpeedFromNMEA(s)
			require.NoError(t, err)
			assert.InDelta(t, 25.0, obs.Speed, 0.05)
		}
	}
}

func TestSimulatedMotionParses(t *testing.T) {
	lines := SimulatedMotion(time.Second, 3)(time.Now())
	require.Len(t, lines, 1)
	raw, err := ParseMotion(lines[0])
	require.NoError(t, err)
	require.NotNil(t, raw.Z)
	assert.InDelta(t, 9.81, *raw.Z, 3)
}

func TestSubscribeFeedsStore(t *testing.T) {
	clock := timeutil.NewMockClock(time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC))
	store := session.NewStore(session.Options{Clock: clock})
	require.NoError(t, store.Start(session.Config{StartPosition: 10}))

	port := serialmux.NewTestableSerialPort()
	port.AddReadData([]byte(strings.Join([]string{
		"$GPGGA,123519,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,*47",
		"$GPVTG,054.7,T,034.4,M,005.5,N,010.2,K*48",
		"ACC,1000,0.1,0.2,9.8",
		"ACC,2000,0.1,,9.8",
		"ACC,2000,0.1,0.3,9.8",
		`{"rate":50}`,
		"",
	}, "\n")))
	mux := serialmux.NewSerialMux("motion", port)

	sub := Subscribe(context.Background(), mux, store, clock)
	require.NoError(t, mux.Monitor(context.Background()))
	require.NoError(t, mux.Close())

	select {
	case <-sub.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("subscription did not stop after the mux closed")
	}

	c := sub.Counters()
	assert.Equal(t, Counters{Lines: 6, Motion: 2, Speed: 1, Rejected: 1, Ignored: 1}, c)

	st := store.Status()
	assert.Equal(t, 2, st.BufferLen)
	assert.Equal(t, 0.9, st.Accuracy)
	assert.InDelta(t, 10.2/3.6, st.Speed, 1e-9)
	assert.InDelta(t, 10+10.2/3.6/1000, st.Position, 1e-9)
}

func TestSubscribeCancel(t *testing.T) {
	mux := serialmux.NewDisabledSerialMux("gps")
	sub := Subscribe(context.Background(), mux, session.NewStore(session.Options{}), nil)
	sub.Cancel()
	sub.Cancel()
	select {
	case <-sub.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("subscription did not stop after Cancel")
	}
}

func TestSubscribeIgnoresMotionWhileIdle(t *testing.T) {
	port := serialmux.NewTestableSerialPort()
	port.AddReadData([]byte("ACC,1000,0.1,0.2,9.8\n"))
	mux := serialmux.NewSerialMux("motion", port)
	store := session.NewStore(session.Options{})

	sub := Subscribe(context.Background(), mux, store, nil)
	require.NoError(t, mux.Monitor(context.Background()))
	mux.Close()
	<-sub.Done()

	assert.Equal(t, uint64(1), sub.Counters().Ignored)
	assert.Zero(t, store.Status().BufferLen)
}
