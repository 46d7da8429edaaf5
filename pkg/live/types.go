package live

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/recera/cardboard/pkg/canvas"
)

// MessageType is the first byte of every binary frame
type MessageType uint8

const (
	FrameSample  MessageType = 0x01
	FrameControl MessageType = 0x02
)

// ErrShortFrame is returned when a binary frame ends before all its fields
var ErrShortFrame = errors.New("live: short frame")

// Control commands. Arguments follow a colon: ALIGN:top, VIEWPORT:800x600.
const (
	CmdHello      = "HELLO"
	CmdPing       = "PING"
	CmdPong       = "PONG"
	CmdReset      = "RESET"
	CmdCenter     = "CENTER"
	CmdFit        = "FIT"
	CmdSeeThrough = "SEETHROUGH"
	CmdLink       = "LINK"
	CmdBack       = "BACK"
	CmdAlign      = "ALIGN"
	CmdViewport   = "VIEWPORT"
)

// Command is a parsed control string
type Command struct {
	Name string
	Arg  string
}

// ParseCommand splits a control string into its name and argument
func ParseCommand(s string) Command {
	name, arg, _ := strings.Cut(s, ":")
	return Command{Name: strings.ToUpper(strings.TrimSpace(name)), Arg: strings.TrimSpace(arg)}
}

func (c Command) String() string {
	if c.Arg == "" {
		return c.Name
	}
	return c.Name + ":" + c.Arg
}

// Message is a JSON text message from server to client
type Message struct {
	Type   string          `json:"type"`
	Intent json.RawMessage `json:"intent,omitempty"`
	Frame  *canvas.Frame   `json:"frame,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// Server message types
const (
	MessageIntent = "intent"
	MessageFrame  = "frame"
	MessageError  = "error"
)
