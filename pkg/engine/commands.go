package engine

import (
	"fmt"
	"time"

	"github.com/dougsko/scumcal/pkg/calibration"
	"github.com/dougsko/scumcal/pkg/diag"
	"github.com/dougsko/scumcal/pkg/protocol"
	"github.com/dougsko/scumcal/pkg/storage"
	"github.com/dougsko/scumcal/pkg/tuning"
)

// DefaultEventLimit caps EVENTS replies without an explicit limit
const DefaultEventLimit = 50

// handleCommand processes a single command
func (e *CoreEngine) handleCommand(cmd *protocol.Command) *protocol.Response {
	switch cmd.Type {
	case protocol.CmdStatus:
		return e.handleStatus()

	case protocol.CmdChannels:
		return protocol.NewSuccessResponse(map[string]interface{}{
			"channels": e.Channels(),
		})

	case protocol.CmdChannel:
		return e.handleChannel(cmd)

	case protocol.CmdEvents:
		return e.handleEvents(cmd)

	case protocol.CmdPlan:
		return e.handlePlan(cmd)

	case protocol.CmdRecalibrate:
		if err := e.Recalibrate(); err != nil {
			return protocol.NewErrorResponse(fmt.Sprintf("recalibrate failed: %v", err))
		}
		return protocol.NewSuccessResponse(map[string]interface{}{
			"status": "recalibrating",
		})

	case protocol.CmdFeedback:
		enabled, ok := cmd.Args["enabled"].(bool)
		if !ok {
			return protocol.NewErrorResponse("feedback requires on or off")
		}
		e.SetFeedback(enabled)
		return protocol.NewSuccessResponse(map[string]interface{}{
			"enabled": enabled,
		})

	case protocol.CmdPing:
		return protocol.NewSuccessResponse(map[string]interface{}{
			"pong": time.Now().Unix(),
		})

	case protocol.CmdQuit:
		return protocol.NewSuccessResponse(map[string]interface{}{
			"message": "goodbye",
		})

	default:
		return protocol.NewErrorResponse(fmt.Sprintf("unknown command: %s", cmd.Type))
	}
}

// handleStatus returns current daemon status
func (e *CoreEngine) handleStatus() *protocol.Response {
	data := map[string]interface{}{
		"status": e.Status(),
	}

	if e.journal != nil {
		if stats, err := e.journal.GetStats(); err == nil {
			data["journal"] = stats
		}
	}

	return protocol.NewSuccessResponse(data)
}

func (e *CoreEngine) handleChannel(cmd *protocol.Command) *protocol.Response {
	channel, ok := cmd.IntArg("channel")
	if !ok {
		return protocol.NewErrorResponse("channel number required")
	}
	report, err := e.Channel(channel)
	if err != nil {
		return protocol.NewErrorResponse(err.Error())
	}
	return protocol.NewSuccessResponse(map[string]interface{}{
		"channel": report,
	})
}

func (e *CoreEngine) handleEvents(cmd *protocol.Command) *protocol.Response {
	limit, ok := cmd.IntArg("limit")
	if !ok {
		limit = DefaultEventLimit
	}
	kind, _ := cmd.StringArg("kind")

	events, err := e.Events(diag.Kind(kind), limit)
	if err != nil {
		return protocol.NewErrorResponse(fmt.Sprintf("failed to get events: %v", err))
	}
	return protocol.NewSuccessResponse(map[string]interface{}{
		"events": events,
		"count":  len(events),
	})
}

func (e *CoreEngine) handlePlan(cmd *protocol.Command) *protocol.Response {
	channel, ok := cmd.IntArg("channel")
	if !ok {
		return protocol.NewErrorResponse("channel number required")
	}
	modeName, _ := cmd.StringArg("mode")
	mode, err := tuning.ParseMode(modeName)
	if err != nil {
		return protocol.NewErrorResponse(err.Error())
	}
	limit, _ := cmd.IntArg("limit")

	codes, window, err := e.Plan(channel, mode, limit)
	if err != nil {
		return protocol.NewErrorResponse(err.Error())
	}
	return protocol.NewSuccessResponse(map[string]interface{}{
		"channel": channel,
		"mode":    mode.String(),
		"window":  window.String(),
		"codes":   codes,
		"count":   len(codes),
	})
}

// Status returns a point in time view of the session
func (e *CoreEngine) Status() protocol.Status {
	e.calMutex.Lock()
	defer e.calMutex.Unlock()

	opts := e.calibrator.Options()
	rx, tx := e.calibrator.NumCalibrated()
	status := protocol.Status{
		State:                 e.calibrator.State().String(),
		AnchorChannel:         opts.AnchorChannel,
		NumChannels:           opts.NumChannels(),
		RxCalibrated:          rx,
		TxCalibrated:          tx,
		ConsecutiveTxFailures: e.calibrator.ConsecutiveTxFailures(),
		Sessions:              e.sessions,
		Slots:                 e.slots,
		Tick:                  uint64(e.board.Timer.CurrentTick()),
		FeedbackEnabled:       e.feedbackEnabled,
		Uptime:                time.Since(e.startTime).String(),
		StartTime:             e.startTime,
		Version:               Version,
	}
	if e.lastError != nil {
		status.LastError = e.lastError.Error()
	}
	return status
}

// Channels returns the calibration records of every channel
func (e *CoreEngine) Channels() []protocol.ChannelReport {
	e.calMutex.Lock()
	snapshot := e.calibrator.Snapshot()
	e.calMutex.Unlock()

	reports := make([]protocol.ChannelReport, 0, len(snapshot))
	for _, s := range snapshot {
		reports = append(reports, toChannelReport(s))
	}
	return reports
}

// Channel returns the calibration records of one channel
func (e *CoreEngine) Channel(channel int) (protocol.ChannelReport, error) {
	e.calMutex.Lock()
	defer e.calMutex.Unlock()

	registry := e.calibrator.Registry()
	rx, err := registry.Info(channel, tuning.ModeRX)
	if err != nil {
		return protocol.ChannelReport{}, err
	}
	tx, _ := registry.Info(channel, tuning.ModeTX)
	return toChannelReport(calibration.ChannelStatus{Channel: channel, RX: rx, TX: tx}), nil
}

// Events returns recent diagnostic events, newest first. The journal is
// used when configured, the in-memory buffer otherwise.
func (e *CoreEngine) Events(kind diag.Kind, limit int) ([]protocol.Event, error) {
	if e.journal != nil {
		stored, err := e.journal.GetEvents(storage.EventQuery{Kind: kind, Limit: limit})
		if err != nil {
			return nil, err
		}
		return fromStored(stored), nil
	}

	recent := e.recent.Recent(kind, limit)
	events := make([]protocol.Event, 0, len(recent))
	for _, ev := range recent {
		events = append(events, ToProtocolEvent(0, ev))
	}
	return events, nil
}

// Plan lists the candidates of a channel's sweep window in the order the
// sweep visits them
func (e *CoreEngine) Plan(channel int, mode tuning.Mode, limit int) ([]tuning.Code, tuning.SweepConfig, error) {
	e.calMutex.Lock()
	info, err := e.calibrator.Registry().Info(channel, mode)
	e.calMutex.Unlock()
	if err != nil {
		return nil, tuning.SweepConfig{}, err
	}
	if !info.Initialized() {
		return nil, tuning.SweepConfig{}, fmt.Errorf("%w: %s channel %d", calibration.ErrChannelNotInitialized, mode, channel)
	}

	codes, err := tuning.Plan(info.SweepConfig, limit)
	if err != nil {
		return nil, tuning.SweepConfig{}, err
	}
	return codes, info.SweepConfig, nil
}

// SetFeedback turns IF feedback on or off
func (e *CoreEngine) SetFeedback(enabled bool) {
	e.calMutex.Lock()
	defer e.calMutex.Unlock()
	if enabled && !e.feedbackEnabled {
		e.controller.Reset()
	}
	e.feedbackEnabled = enabled
}

func toChannelReport(s calibration.ChannelStatus) protocol.ChannelReport {
	return protocol.ChannelReport{
		Channel: s.Channel,
		RX:      toModeStatus(s.RX),
		TX:      toModeStatus(s.TX),
	}
}

func toModeStatus(info calibration.ChannelModeInfo) protocol.ModeStatus {
	status := protocol.ModeStatus{
		Calibrated:  info.Calibrated,
		Code:        info.TuningCode,
		NumFailures: int(info.NumFailures),
	}
	if info.Initialized() {
		status.Window = info.SweepConfig.String()
	}
	return status
}
