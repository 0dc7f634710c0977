package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/thiefmaster/matrixctl/comm"
)

type fakeSerial struct {
	mu       sync.Mutex
	in       bytes.Buffer
	out      bytes.Buffer
	writeErr error
}

func (s *fakeSerial) Read(b []byte) (int, error) {
	s.mu.Lock()
	if s.in.Len() > 0 {
		defer s.mu.Unlock()
		return s.in.Read(b)
	}
	s.mu.Unlock()
	time.Sleep(time.Millisecond)
	return 0, io.EOF
}

func (s *fakeSerial) Write(b []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil {
		return 0, s.writeErr
	}
	return s.out.Write(b)
}

func (s *fakeSerial) Close() error {
	return nil
}

func (s *fakeSerial) written() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.out.Bytes()...)
}

func TestNextBackoff(t *testing.T) {
	assert.Equal(t, time.Second, nextBackoff(minBackoff))
	assert.Equal(t, maxBackoff, nextBackoff(4*time.Second))
	assert.Equal(t, maxBackoff, nextBackoff(maxBackoff))
}

func TestDeviceReconnects(t *testing.T) {
	broken := &fakeSerial{writeErr: errors.New("unplugged")}
	healthy := &fakeSerial{}
	healthy.in.Write(comm.Encode(comm.Opcode(0x04), []byte{0x46}))

	var mu sync.Mutex
	opens := 0
	d := &device{
		cfg:    comm.Config{Name: "test"},
		logger: zerolog.Nop(),
		open: func(comm.Config) (*comm.Port, error) {
			mu.Lock()
			defer mu.Unlock()
			opens++
			switch opens {
			case 1:
				return nil, errors.New("no such device")
			case 2:
				return comm.NewPort(broken), nil
			default:
				return comm.NewPort(healthy), nil
			}
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cmdChan := make(chan comm.Command, 4)
	msgChan := make(chan comm.Message, 4)
	done := make(chan error, 1)
	go func() {
		done <- d.run(ctx, cmdChan, func(msg comm.Message) { msgChan <- msg })
	}()

	// lost on the broken port
	cmdChan <- comm.NewBrightnessCommand(10)

	select {
	case msg := <-msgChan:
		assert.Equal(t, comm.Opcode(0x04), msg.Opcode)
	case <-time.After(5 * time.Second):
		t.Fatal("healthy port never opened")
	}

	cmdChan <- comm.NewBrightnessCommand(20)
	want := comm.Encode(comm.UpdateBrightness, []byte{20})
	assert.Eventually(t, func() bool {
		return bytes.Equal(healthy.written(), want)
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("run did not stop")
	}
}

func TestDeviceStopsWhileOpening(t *testing.T) {
	d := &device{
		logger: zerolog.Nop(),
		open: func(comm.Config) (*comm.Port, error) {
			return nil, errors.New("no such device")
		},
	}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := d.run(ctx, make(chan comm.Command), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestExitStatus(t *testing.T) {
	assert.NoError(t, exitStatus(nil))
	assert.NoError(t, exitStatus(context.Canceled))
	assert.NoError(t, exitStatus(fmt.Errorf("run: %w", context.Canceled)))

	err := exitStatus(context.DeadlineExceeded)
	var exit cli.ExitCoder
	require.ErrorAs(t, err, &exit)
	assert.Equal(t, 1, exit.ExitCode())
	assert.ErrorContains(t, err, context.DeadlineExceeded.Error())
}
