package engine

import (
	"fmt"

	"github.com/dougsko/scumcal/pkg/calibration"
	"github.com/dougsko/scumcal/pkg/config"
	"github.com/dougsko/scumcal/pkg/feedback"
	"github.com/dougsko/scumcal/pkg/tuning"
)

// CalibrationOptions maps the daemon configuration onto a calibration
// session
func CalibrationOptions(cfg *config.Config) (calibration.Options, error) {
	r := cfg.Radio
	cal := cfg.Calibration
	opts := calibration.Options{
		MinChannel:       r.MinChannel,
		MaxChannel:       r.MaxChannel,
		AnchorChannel:    r.AnchorChannel,
		FailureThreshold: cal.FailureThreshold,
		InitialCoarse: tuning.SweepRange{
			Start: uint8(r.InitialCoarseStart),
			End:   uint8(r.InitialCoarseEnd),
		},
		NominalMid:             uint8(r.NominalMid),
		FineHeadroom:           uint8(r.FineHeadroom),
		SlotDuration:           calibration.Ticks(cal.SlotDuration),
		SlotframeLength:        cal.SlotframeLength,
		SlotframesPerCandidate: cal.SlotframesPerCandidate,
		SweptChannels:          cal.SweptChannels,
		RxFineOffsets: calibration.RxFineOffsets{
			Listen: uint8(r.RxFineOffsets.Listen),
			Sync:   uint8(r.RxFineOffsets.Sync),
			Ack:    uint8(r.RxFineOffsets.Ack),
		},
		Arithmetic: cfg.Tuning,
	}
	if err := opts.Validate(); err != nil {
		return calibration.Options{}, fmt.Errorf("invalid calibration settings: %w", err)
	}
	return opts, nil
}

// FeedbackOptions maps the daemon configuration onto the IF controller
func FeedbackOptions(cfg *config.Config) (feedback.Options, error) {
	opts := feedback.Options{
		Capacity:   cfg.Feedback.Capacity,
		NominalIF:  uint32(cfg.Feedback.NominalIF),
		Tolerance:  uint32(cfg.Feedback.Tolerance),
		Arithmetic: cfg.Tuning,
	}
	if err := opts.Validate(); err != nil {
		return feedback.Options{}, fmt.Errorf("invalid feedback settings: %w", err)
	}
	return opts, nil
}
