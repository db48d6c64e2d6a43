package protocol

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dougsko/scumcal/pkg/tuning"
)

// Command represents a command sent to the core engine
type Command struct {
	Type string                 `json:"type"`
	Args map[string]interface{} `json:"args,omitempty"`
}

// Response represents a response from the core engine
type Response struct {
	Success bool                   `json:"success"`
	Data    map[string]interface{} `json:"data,omitempty"`
	Error   string                 `json:"error,omitempty"`
}

// Status represents the current daemon status
type Status struct {
	State                 string    `json:"state"`
	AnchorChannel         int       `json:"anchor_channel"`
	NumChannels           int       `json:"num_channels"`
	RxCalibrated          int       `json:"rx_calibrated"`
	TxCalibrated          int       `json:"tx_calibrated"`
	ConsecutiveTxFailures int       `json:"consecutive_tx_failures"`
	Sessions              int       `json:"sessions"`
	Slots                 uint64    `json:"slots"`
	Tick                  uint64    `json:"tick"`
	FeedbackEnabled       bool      `json:"feedback_enabled"`
	LastError             string    `json:"last_error,omitempty"`
	Uptime                string    `json:"uptime"`
	StartTime             time.Time `json:"start_time"`
	Version               string    `json:"version"`
}

// ModeStatus is one side of a channel as reported over the API
type ModeStatus struct {
	Calibrated  bool        `json:"calibrated"`
	Code        tuning.Code `json:"code"`
	Window      string      `json:"window"`
	NumFailures int         `json:"num_failures"`
}

// ChannelReport is the calibration state of one channel
type ChannelReport struct {
	Channel int        `json:"channel"`
	RX      ModeStatus `json:"rx"`
	TX      ModeStatus `json:"tx"`
}

// Event is a journaled or live diagnostic event
type Event struct {
	ID        int64       `json:"id,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Kind      string      `json:"kind"`
	Channel   int         `json:"channel,omitempty"`
	Mode      tuning.Mode `json:"mode"`
	Code      tuning.Code `json:"code"`
	Line      string      `json:"line"`
}

// ParseCommand parses a text command into a Command struct
func ParseCommand(text string) (*Command, error) {
	text = strings.TrimSpace(text)
	parts := strings.SplitN(text, ":", 2)

	cmd := &Command{
		Type: strings.ToUpper(parts[0]),
		Args: make(map[string]interface{}),
	}

	if len(parts) > 1 {
		args := parts[1]

		switch cmd.Type {
		case CmdChannel:
			// CHANNEL:17
			channel, err := strconv.Atoi(args)
			if err != nil {
				return nil, fmt.Errorf("invalid channel %q", args)
			}
			cmd.Args["channel"] = channel

		case CmdEvents:
			// EVENTS:20 or EVENTS:kind:calibrated or EVENTS:kind:calibrated:20
			if strings.HasPrefix(args, "kind:") {
				kindParts := strings.SplitN(strings.TrimPrefix(args, "kind:"), ":", 2)
				cmd.Args["kind"] = kindParts[0]
				if len(kindParts) > 1 {
					args = kindParts[1]
				} else {
					args = ""
				}
			}
			if args != "" {
				limit, err := strconv.Atoi(args)
				if err != nil || limit < 0 {
					return nil, fmt.Errorf("invalid event limit %q", args)
				}
				cmd.Args["limit"] = limit
			}

		case CmdPlan:
			// PLAN:17:rx or PLAN:17:tx:50
			planParts := strings.SplitN(args, ":", 3)
			channel, err := strconv.Atoi(planParts[0])
			if err != nil {
				return nil, fmt.Errorf("invalid channel %q", planParts[0])
			}
			cmd.Args["channel"] = channel
			cmd.Args["mode"] = "RX"
			if len(planParts) >= 2 {
				mode, err := tuning.ParseMode(planParts[1])
				if err != nil {
					return nil, err
				}
				cmd.Args["mode"] = mode.String()
			}
			if len(planParts) >= 3 {
				limit, err := strconv.Atoi(planParts[2])
				if err != nil || limit < 0 {
					return nil, fmt.Errorf("invalid plan limit %q", planParts[2])
				}
				cmd.Args["limit"] = limit
			}

		case CmdFeedback:
			// FEEDBACK:on or FEEDBACK:off
			switch strings.ToLower(args) {
			case "on":
				cmd.Args["enabled"] = true
			case "off":
				cmd.Args["enabled"] = false
			default:
				return nil, fmt.Errorf("invalid feedback setting %q", args)
			}
		}
	}

	return cmd, nil
}

// IntArg returns an integer argument
func (c *Command) IntArg(name string) (int, bool) {
	v, ok := c.Args[name].(int)
	return v, ok
}

// StringArg returns a string argument
func (c *Command) StringArg(name string) (string, bool) {
	v, ok := c.Args[name].(string)
	return v, ok
}

// String converts a Response to a JSON string
func (r *Response) String() string {
	data, _ := json.Marshal(r)
	return string(data)
}

// Decode unmarshals one Data field into out
func (r *Response) Decode(key string, out interface{}) error {
	raw, ok := r.Data[key]
	if !ok {
		return fmt.Errorf("%s not found in response", key)
	}
	// Round trip through JSON so maps decode into typed structs
	data, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse %s: %w", key, err)
	}
	return nil
}

// NewSuccessResponse creates a successful response
func NewSuccessResponse(data map[string]interface{}) *Response {
	return &Response{
		Success: true,
		Data:    data,
	}
}

// NewErrorResponse creates an error response
func NewErrorResponse(err string) *Response {
	return &Response{
		Success: false,
		Error:   err,
	}
}

// Protocol commands
const (
	CmdStatus      = "STATUS"
	CmdChannels    = "CHANNELS"
	CmdChannel     = "CHANNEL"
	CmdEvents      = "EVENTS"
	CmdPlan        = "PLAN"
	CmdRecalibrate = "RECALIBRATE"
	CmdFeedback    = "FEEDBACK"
	CmdQuit        = "QUIT"
	CmdPing        = "PING"
)
