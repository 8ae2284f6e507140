package channel

import (
	"testing"
	"time"

	"github.com/mshroom/RecordManager/internal/record"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteReadRoundTrip(t *testing.T) {
	a, b := Pipe()
	defer a.Close()
	defer b.Close()

	cases := [][]byte{
		[]byte(""),
		[]byte("hello"),
		make([]byte, 70000),
	}

	for _, payload := range cases {
		go func(p []byte) {
			require.NoError(t, a.Write(p))
		}(payload)

		got, err := b.ReadBlocking()
		require.NoError(t, err)
		assert.Equal(t, payload, got)
	}
}

func TestReadBlockingOnClosedConn(t *testing.T) {
	a, b := Pipe()
	require.NoError(t, a.Close())

	_, err := b.ReadBlocking()
	require.Error(t, err)
	var closedErr *record.ChannelClosedError
	assert.ErrorAs(t, err, &closedErr)
}

func TestReadNonBlockingReturnsNilWhenIdle(t *testing.T) {
	a, b := Pipe()
	defer a.Close()
	defer b.Close()

	got, err := b.ReadNonBlocking(20 * time.Millisecond)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestReadNonBlockingReceivesFrame(t *testing.T) {
	a, b := Pipe()
	defer a.Close()
	defer b.Close()

	done := make(chan struct{})
	go func() {
		require.NoError(t, a.Write([]byte("payload")))
		close(done)
	}()

	var got []byte
	require.Eventually(t, func() bool {
		var err error
		got, err = b.ReadNonBlocking(50 * time.Millisecond)
		require.NoError(t, err)
		return got != nil
	}, time.Second, 10*time.Millisecond)
	<-done

	assert.Equal(t, []byte("payload"), got)
}
