package flowgraph

import "errors"

var (
	// ErrUnknownBlock is returned for a BlockID the graph does not hold.
	ErrUnknownBlock = errors.New("unknown block")
	// ErrUnknownPort is returned for a port name the block does not declare.
	ErrUnknownPort = errors.New("unknown port")
	// ErrAlreadyConnected is returned when a stream port is connected twice.
	ErrAlreadyConnected = errors.New("port already connected")
	// ErrUnconnected is returned by Validate for a dangling stream port.
	ErrUnconnected = errors.New("stream port not connected")
	// ErrRunning is returned when the graph is modified or started while
	// a run is in progress.
	ErrRunning = errors.New("flowgraph is running")
)
