package transport

import (
	"bufio"
	"fmt"
	"time"

	"go.bug.st/serial"
)

// SerialConfig locates and configures the dongle's serial port.
type SerialConfig struct {
	// Port is the device path, e.g. /dev/ttyUSB0.
	Port string

	// Baud defaults to 115200, the evofw3 rate.
	Baud int
}

const defaultBaud = 115200

// Serial speaks to an evofw3-style USB dongle over a serial port.
type Serial struct {
	*base
	port serial.Port
}

// NewSerial opens the configured port and starts the read loop. A
// missing or unopenable device fails with ErrTransportSerial.
func NewSerial(cfg SerialConfig, protocol Protocol, logger Logger, opts Options) (*Serial, error) {
	baud := cfg.Baud
	if baud <= 0 {
		baud = defaultBaud
	}

	port, err := serial.Open(cfg.Port, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrTransportSerial, cfg.Port, err)
	}

	s := &Serial{port: port}
	s.base = newBase(protocol, logger, opts, s.write)
	protocol.ConnectionMade(s)
	s.start()
	go s.readLoop()

	logger.Debug("serial transport open", "port", cfg.Port, "baud", baud)
	return s, nil
}

func (s *Serial) write(frame string) error {
	if _, err := s.port.Write([]byte(frame + "\r\n")); err != nil {
		return fmt.Errorf("write %s: %w", frame, err)
	}
	return nil
}

func (s *Serial) readLoop() {
	scanner := bufio.NewScanner(s.port)
	for scanner.Scan() {
		select {
		case <-s.closed:
			return
		default:
		}
		s.deliver(scanner.Text(), time.Now())
	}

	select {
	case <-s.closed:
		// Close() tore down the port; not a transport fault.
		return
	default:
	}

	err := scanner.Err()
	if err == nil {
		err = fmt.Errorf("%w: serial stream ended", ErrTransport)
	} else {
		err = fmt.Errorf("%w: %v", ErrTransport, err)
	}
	s.protocol.ConnectionLost(err)
}

// Close stops the pumps and releases the port.
func (s *Serial) Close() error {
	s.close()
	if err := s.port.Close(); err != nil {
		return fmt.Errorf("%w: close: %v", ErrTransport, err)
	}
	return nil
}
