// Package transport provides the channels an Endpoint sends packets through.
//
// A Channel is nothing more than a numeric id plus a send capability. What sits
// behind Send is up to the application: a TCP connection (Conn), a serial link,
// an in-process queue in tests. Many calls share one channel.
package transport

import (
	"errors"
	"fmt"
)

// ErrNoOutput is returned when a channel is built without a send capability.
var ErrNoOutput = errors.New("transport: channel has no output")

// Output sends one encoded packet. Implementations decide whether Send blocks;
// a returned error means the packet was not sent.
type Output interface {
	Send(data []byte) error
}

// OutputFunc adapts a plain function to Output.
type OutputFunc func(data []byte) error

func (f OutputFunc) Send(data []byte) error {
	return f(data)
}

// Channel is an immutable (id, output) pair. Channel id 0 is reserved.
type Channel struct {
	id     uint32
	output Output
}

// NewChannel creates a channel. It fails on id 0 or a nil output.
func NewChannel(id uint32, output Output) (*Channel, error) {
	if id == 0 {
		return nil, fmt.Errorf("transport: channel id 0 is reserved")
	}
	if output == nil {
		return nil, ErrNoOutput
	}
	return &Channel{id: id, output: output}, nil
}

// MustChannel is NewChannel that panics on error.
func MustChannel(id uint32, output Output) *Channel {
	ch, err := NewChannel(id, output)
	if err != nil {
		panic(err)
	}
	return ch
}

func (c *Channel) ID() uint32 {
	return c.id
}

// Send hands data to the channel's output.
func (c *Channel) Send(data []byte) error {
	return c.output.Send(data)
}

func (c *Channel) String() string {
	return fmt.Sprintf("channel %d", c.id)
}
