package i2c

import (
	"context"
	"encoding/hex"
	"fmt"
	"sync"

	gobot "gobot.io/x/gobot/v2/drivers/i2c"

	"github.com/mklimuk/protractor"
	"github.com/mklimuk/protractor/snsctx"
)

var (
	_ protractor.I2CBus  = &GobotBus{}
	_ protractor.Starter = &GobotBus{}
)

// connecter is implemented by gobot adaptors (e.g. nanopi.Adaptor).
type connecter interface {
	Connect() error
}

// GobotBus drives an I2C bus through a gobot adaptor. Connections are opened
// lazily, one per device address, and kept until Close.
type GobotBus struct {
	mx        sync.Mutex
	connector gobot.Connector
	busNr     int
	conns     map[byte]gobot.Connection
}

// NewGobotBus uses bus number busNr of the adaptor; a negative number selects the adaptor's default bus.
func NewGobotBus(connector gobot.Connector, busNr int) *GobotBus {
	if busNr < 0 {
		busNr = connector.DefaultI2cBus()
	}
	return &GobotBus{
		connector: connector,
		busNr:     busNr,
		conns:     make(map[byte]gobot.Connection),
	}
}

// Start connects the adaptor if it needs connecting.
func (b *GobotBus) Start(ctx context.Context) error {
	c, ok := b.connector.(connecter)
	if !ok {
		return nil
	}
	err := c.Connect()
	if err != nil {
		return fmt.Errorf("could not connect gobot adaptor: %w", err)
	}
	return nil
}

func (b *GobotBus) ReadFromAddr(ctx context.Context, address byte, buffer []byte) error {
	b.mx.Lock()
	defer b.mx.Unlock()
	conn, err := b.conn(address)
	if err != nil {
		return err
	}
	n, err := conn.Read(buffer)
	if err != nil {
		return fmt.Errorf("could not read from i2c bus %d device %x: %w", b.busNr, address, err)
	}
	if n != len(buffer) {
		return fmt.Errorf("short read from device %x: %d of %d bytes", address, n, len(buffer))
	}
	if snsctx.IsVerbose(ctx) {
		snsctx.Logger(ctx).Debug("i2c read", "bus", b.busNr, "addr", address, "data", hex.EncodeToString(buffer))
	}
	return nil
}

func (b *GobotBus) WriteToAddr(ctx context.Context, address byte, buffer []byte) error {
	b.mx.Lock()
	defer b.mx.Unlock()
	conn, err := b.conn(address)
	if err != nil {
		return err
	}
	if snsctx.IsVerbose(ctx) {
		snsctx.Logger(ctx).Debug("i2c write", "bus", b.busNr, "addr", address, "data", hex.EncodeToString(buffer))
	}
	n, err := conn.Write(buffer)
	if err != nil {
		return fmt.Errorf("could not write to i2c bus %d device %x: %w", b.busNr, address, err)
	}
	if n != len(buffer) {
		return fmt.Errorf("short write to device %x: %d of %d bytes", address, n, len(buffer))
	}
	return nil
}

func (b *GobotBus) Release(ctx context.Context) error {
	return nil
}

// Close closes every device connection opened so far.
func (b *GobotBus) Close() error {
	b.mx.Lock()
	defer b.mx.Unlock()
	var firstErr error
	for addr, conn := range b.conns {
		if err := conn.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("could not close connection to %x: %w", addr, err)
		}
		delete(b.conns, addr)
	}
	return firstErr
}

func (b *GobotBus) conn(address byte) (gobot.Connection, error) {
	if conn, ok := b.conns[address]; ok {
		return conn, nil
	}
	conn, err := b.connector.GetI2cConnection(int(address), b.busNr)
	if err != nil {
		return nil, fmt.Errorf("could not open i2c bus %d device %x: %w", b.busNr, address, err)
	}
	b.conns[address] = conn
	return conn, nil
}
