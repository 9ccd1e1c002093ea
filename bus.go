// Package protractor holds the transport contracts shared by the sensor driver
// and the bus adapters.
package protractor

import (
	"context"
	"fmt"
	"io"
)

var ErrBusBusy = fmt.Errorf("I2C engine is busy (command not completed)")

type AddressableReader interface {
	ReadFromAddr(ctx context.Context, address byte, buffer []byte) error
}

type AddressableWriter interface {
	WriteToAddr(ctx context.Context, address byte, buffer []byte) error
	Release(ctx context.Context) error
}

type I2CBus interface {
	AddressableReader
	AddressableWriter
}

// Starter is implemented by buses that need to be brought up before the first transaction.
type Starter interface {
	Start(ctx context.Context) error
}

// ByteStream is a sequential byte source/sink such as a UART.
// Buffered reports how many bytes can be read without blocking.
type ByteStream interface {
	io.Writer
	io.ByteReader
	Buffered() int
}
