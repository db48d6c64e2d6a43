// Package hardware provides the simulated mote the calibration daemon runs
// against: a radio with hidden true codes, a virtual tick clock and an IF
// counter.
package hardware

import (
	"fmt"

	"github.com/dougsko/scumcal/pkg/config"
	"github.com/dougsko/scumcal/pkg/dsp"
	"github.com/dougsko/scumcal/pkg/logging"
)

// Board bundles the simulated peripherals of one mote
type Board struct {
	Radio *SimRadio
	Timer *TickTimer
	Meter *dsp.IFMeter
}

// SimConfigFromConfig maps the daemon configuration onto the simulation
func SimConfigFromConfig(cfg *config.Config) (SimConfig, error) {
	anchor, err := cfg.TrueAnchorCode()
	if err != nil {
		return SimConfig{}, err
	}
	return SimConfig{
		Arithmetic:      cfg.Tuning,
		MinChannel:      cfg.Radio.MinChannel,
		MaxChannel:      cfg.Radio.MaxChannel,
		AnchorChannel:   cfg.Radio.AnchorChannel,
		TrueAnchor:      anchor,
		TxSkew:          cfg.Simulation.TxSkew,
		LockWindow:      cfg.Simulation.LockWindow,
		DriftEverySlots: cfg.Simulation.DriftEverySlot,
		LossRate:        cfg.Simulation.LossRate,
		Seed:            cfg.Simulation.Seed,
		NominalIF:       uint32(cfg.Feedback.NominalIF),
		IFPerFine:       uint32(cfg.Simulation.IFPerFine),
	}, nil
}

// NewBoard builds the simulated mote described by cfg
func NewBoard(cfg *config.Config) (*Board, error) {
	logging.Infof("HARDWARE", "Initializing simulated mote...")

	simCfg, err := SimConfigFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to configure simulation: %w", err)
	}

	meter, err := dsp.NewIFMeter(cfg.Simulation.IFSampleRate, cfg.Simulation.IFWindow)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize IF meter: %w", err)
	}

	radio, err := NewSimRadio(simCfg, meter)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize radio: %w", err)
	}

	logging.Infof("HARDWARE", "Radio initialized (true anchor %s on channel %d, lock window %d)",
		simCfg.TrueAnchor, simCfg.AnchorChannel, simCfg.LockWindow)
	logging.Infof("HARDWARE", "IF meter initialized (%d samples at %d Hz)",
		meter.WindowSize(), cfg.Simulation.IFSampleRate)

	return &Board{
		Radio: radio,
		Timer: NewTickTimer(),
		Meter: meter,
	}, nil
}
