package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"os"

	"github.com/dougsko/scumcal/pkg/config"
	"github.com/dougsko/scumcal/pkg/tuning"
)

func main() {
	var (
		configPath = flag.String("config", "", "Configuration file (defaults when empty)")
		anchor     = flag.String("anchor", "", "Anchor channel RX code as CC.MM.FF")
		window     = flag.String("window", "", "Sweep window as c0..c1,m0..m1,f0..f1")
		limit      = flag.Int("limit", 0, "Maximum candidates to list, 0 for all")
		showWire   = flag.Bool("wire", false, "Show wire encodings")
	)
	flag.Parse()

	if *anchor == "" && *window == "" {
		fmt.Fprintf(os.Stderr, "Usage: %s -anchor 23.29.12 | -window 23..23,28..30,0..24 [options]\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(1)
	}

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.LoadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if err := cfg.Tuning.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid tuning arithmetic: %v\n", err)
		os.Exit(1)
	}

	if *anchor != "" {
		code, err := tuning.ParseCode(*anchor)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Anchor error: %v\n", err)
			os.Exit(1)
		}
		printChannelTable(cfg, code, *showWire)
	}

	if *window != "" {
		sweep, err := parseWindow(*window)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Window error: %v\n", err)
			os.Exit(1)
		}
		if err := printPlan(sweep, *limit, *showWire); err != nil {
			fmt.Fprintf(os.Stderr, "Plan error: %v\n", err)
			os.Exit(1)
		}
	}
}

func parseWindow(s string) (tuning.SweepConfig, error) {
	var c0, c1, m0, m1, f0, f1 int
	if _, err := fmt.Sscanf(s, "%d..%d,%d..%d,%d..%d", &c0, &c1, &m0, &m1, &f0, &f1); err != nil {
		return tuning.SweepConfig{}, fmt.Errorf("invalid window %q: %w", s, err)
	}
	return tuning.NewSweepConfig(c0, c1, m0, m1, f0, f1)
}

// printChannelTable extrapolates RX and TX codes for every channel from the
// anchor's RX code
func printChannelTable(cfg *config.Config, anchor tuning.Code, showWire bool) {
	a := cfg.Tuning
	rx := make(map[int]tuning.Code)
	rx[cfg.Radio.AnchorChannel] = anchor
	for ch := cfg.Radio.AnchorChannel + 1; ch <= cfg.Radio.MaxChannel; ch++ {
		rx[ch] = a.EstimateNextChannel(rx[ch-1], tuning.ModeRX)
	}
	for ch := cfg.Radio.AnchorChannel - 1; ch >= cfg.Radio.MinChannel; ch-- {
		rx[ch] = a.EstimatePreviousChannel(rx[ch+1], tuning.ModeRX)
	}

	fmt.Printf("Channel Estimates (anchor %d at %s)\n", cfg.Radio.AnchorChannel, anchor)
	fmt.Printf("=========================================\n")
	fmt.Printf("Chan  RX        TX        Position\n")
	for ch := cfg.Radio.MinChannel; ch <= cfg.Radio.MaxChannel; ch++ {
		tx := a.EstimateTxFromRx(rx[ch])
		fmt.Printf("%4d  %s  %s  %5d", ch, rx[ch], tx, a.Position(rx[ch]))
		if showWire {
			report := tuning.CalibrationReport{Sequence: uint8(ch), Channel: uint8(ch), Code: tx}
			data, _ := report.MarshalBinary()
			fmt.Printf("  %s", hex.EncodeToString(data))
		}
		fmt.Printf("\n")
	}
	fmt.Printf("\n")
}

func printPlan(sweep tuning.SweepConfig, limit int, showWire bool) error {
	codes, err := tuning.Plan(sweep, limit)
	if err != nil {
		return err
	}

	fmt.Printf("Sweep Plan %s\n", sweep)
	fmt.Printf("=========================================\n")
	fmt.Printf("Window holds %d codes, listing %d\n", sweep.NumCodes(), len(codes))
	for i, c := range codes {
		fmt.Printf("%4d: %s\n", i, c)
	}

	if showWire {
		data, err := sweep.MarshalBinary()
		if err != nil {
			return err
		}
		fmt.Printf("\nWindow:      %s\n", hex.EncodeToString(data))

		table := tuning.TxCodeTable{Codes: tuning.AverageFineByMidPair(codes)}
		data, err = table.MarshalBinary()
		if err != nil {
			return err
		}
		fmt.Printf("Code table:  %s (%d entries)\n", hex.EncodeToString(data), len(table.Codes))
	}
	return nil
}
