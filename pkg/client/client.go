package client

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/dougsko/scumcal/pkg/protocol"
	"github.com/dougsko/scumcal/pkg/tuning"
)

// SocketClient represents a client connection to the core engine
type SocketClient struct {
	socketPath string
	timeout    time.Duration
}

// NewSocketClient creates a new socket client
func NewSocketClient(socketPath string) *SocketClient {
	return &SocketClient{
		socketPath: socketPath,
		timeout:    5 * time.Second,
	}
}

// SetTimeout changes the per command timeout
func (c *SocketClient) SetTimeout(timeout time.Duration) {
	c.timeout = timeout
}

// SendCommand sends a command and returns the response
func (c *SocketClient) SendCommand(cmd string) (*protocol.Response, error) {
	conn, err := net.DialTimeout("unix", c.socketPath, c.timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to socket: %w", err)
	}
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(c.timeout))

	if _, err := conn.Write([]byte(cmd + "\n")); err != nil {
		return nil, fmt.Errorf("send error: %w", err)
	}

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("read error: %w", err)
		}
		return nil, fmt.Errorf("no response received")
	}

	var response protocol.Response
	if err := json.Unmarshal(scanner.Bytes(), &response); err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}

	return &response, nil
}

func (c *SocketClient) call(cmd, what string) (*protocol.Response, error) {
	resp, err := c.SendCommand(cmd)
	if err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, fmt.Errorf("%s error: %s", what, resp.Error)
	}
	return resp, nil
}

// GetStatus gets the current daemon status
func (c *SocketClient) GetStatus() (*protocol.Status, error) {
	resp, err := c.call(protocol.CmdStatus, "status")
	if err != nil {
		return nil, err
	}

	var status protocol.Status
	if err := resp.Decode("status", &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// GetChannels gets the calibration state of every channel
func (c *SocketClient) GetChannels() ([]protocol.ChannelReport, error) {
	resp, err := c.call(protocol.CmdChannels, "channels")
	if err != nil {
		return nil, err
	}

	var channels []protocol.ChannelReport
	if err := resp.Decode("channels", &channels); err != nil {
		return nil, err
	}
	return channels, nil
}

// GetChannel gets the calibration state of one channel
func (c *SocketClient) GetChannel(channel int) (*protocol.ChannelReport, error) {
	resp, err := c.call(fmt.Sprintf("%s:%d", protocol.CmdChannel, channel), "channel")
	if err != nil {
		return nil, err
	}

	var report protocol.ChannelReport
	if err := resp.Decode("channel", &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// GetEvents gets recent diagnostic events, optionally of one kind
func (c *SocketClient) GetEvents(kind string, limit int) ([]protocol.Event, error) {
	cmd := protocol.CmdEvents
	switch {
	case kind != "" && limit > 0:
		cmd = fmt.Sprintf("%s:kind:%s:%d", protocol.CmdEvents, kind, limit)
	case kind != "":
		cmd = fmt.Sprintf("%s:kind:%s", protocol.CmdEvents, kind)
	case limit > 0:
		cmd = fmt.Sprintf("%s:%d", protocol.CmdEvents, limit)
	}

	resp, err := c.call(cmd, "events")
	if err != nil {
		return nil, err
	}

	if _, ok := resp.Data["events"]; !ok {
		return []protocol.Event{}, nil
	}
	var events []protocol.Event
	if err := resp.Decode("events", &events); err != nil {
		return nil, err
	}
	return events, nil
}

// GetPlan lists the candidates a channel's sweep would visit
func (c *SocketClient) GetPlan(channel int, mode tuning.Mode, limit int) ([]tuning.Code, error) {
	cmd := fmt.Sprintf("%s:%d:%s", protocol.CmdPlan, channel, mode)
	if limit > 0 {
		cmd = fmt.Sprintf("%s:%d", cmd, limit)
	}

	resp, err := c.call(cmd, "plan")
	if err != nil {
		return nil, err
	}

	var codes []tuning.Code
	if err := resp.Decode("codes", &codes); err != nil {
		return nil, err
	}
	return codes, nil
}

// Recalibrate starts a new calibration session
func (c *SocketClient) Recalibrate() error {
	_, err := c.call(protocol.CmdRecalibrate, "recalibrate")
	return err
}

// SetFeedback turns IF feedback on or off
func (c *SocketClient) SetFeedback(enabled bool) error {
	setting := "off"
	if enabled {
		setting = "on"
	}
	_, err := c.call(fmt.Sprintf("%s:%s", protocol.CmdFeedback, setting), "feedback")
	return err
}

// Ping tests the connection
func (c *SocketClient) Ping() error {
	_, err := c.call(protocol.CmdPing, "ping")
	return err
}

// IsConnected tests if the daemon is reachable
func (c *SocketClient) IsConnected() bool {
	return c.Ping() == nil
}
