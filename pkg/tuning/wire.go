package tuning

import "fmt"

// Wire sizes of the tuning payload structures
const (
	CodeSize              = 3
	SweepConfigSize       = 6
	CalibrationReportSize = 10
	MaxTxCodesPerChannel  = 4
	TxCodeTableSize       = 2 + MaxTxCodesPerChannel*CodeSize + 2
)

// Command carried by a calibration report
type Command uint8

const (
	CommandNone          Command = 0x00
	CommandChangeChannel Command = 0xFF
)

// MarshalBinary encodes the code as coarse, mid, fine bytes
func (c Code) MarshalBinary() ([]byte, error) {
	return []byte{c.Coarse, c.Mid, c.Fine}, nil
}

// UnmarshalBinary decodes three bytes into the code
func (c *Code) UnmarshalBinary(data []byte) error {
	if len(data) < CodeSize {
		return fmt.Errorf("%w: code needs %d bytes, got %d", ErrShortBuffer, CodeSize, len(data))
	}
	decoded := Code{Coarse: data[0], Mid: data[1], Fine: data[2]}
	if !decoded.Valid() {
		return fmt.Errorf("%w: %s", ErrCodeOutOfRange, decoded)
	}
	*c = decoded
	return nil
}

// MarshalBinary encodes the config as start/end byte pairs for coarse, mid, fine
func (s SweepConfig) MarshalBinary() ([]byte, error) {
	return []byte{s.Coarse.Start, s.Coarse.End, s.Mid.Start, s.Mid.End, s.Fine.Start, s.Fine.End}, nil
}

// UnmarshalBinary decodes and validates a sweep config
func (s *SweepConfig) UnmarshalBinary(data []byte) error {
	if len(data) < SweepConfigSize {
		return fmt.Errorf("%w: sweep config needs %d bytes, got %d", ErrShortBuffer, SweepConfigSize, len(data))
	}
	decoded := SweepConfig{
		Coarse: SweepRange{Start: data[0], End: data[1]},
		Mid:    SweepRange{Start: data[2], End: data[3]},
		Fine:   SweepRange{Start: data[4], End: data[5]},
	}
	if err := decoded.Validate(); err != nil {
		return err
	}
	*s = decoded
	return nil
}

// CalibrationReport is the tuning payload a mote sends to its calibration
// peer: the code it transmitted with and an optional command.
//
// Layout: seq | channel | 2 reserved | command | reserved | code[3] | reserved
type CalibrationReport struct {
	Sequence uint8
	Channel  uint8
	Command  Command
	Code     Code
}

// MarshalBinary encodes the report; reserved bytes are zero
func (r CalibrationReport) MarshalBinary() ([]byte, error) {
	buf := make([]byte, CalibrationReportSize)
	buf[0] = r.Sequence
	buf[1] = r.Channel
	buf[4] = byte(r.Command)
	buf[6], buf[7], buf[8] = r.Code.Coarse, r.Code.Mid, r.Code.Fine
	return buf, nil
}

// UnmarshalBinary decodes a report
func (r *CalibrationReport) UnmarshalBinary(data []byte) error {
	if len(data) < CalibrationReportSize {
		return fmt.Errorf("%w: report needs %d bytes, got %d", ErrShortBuffer, CalibrationReportSize, len(data))
	}
	var code Code
	if err := code.UnmarshalBinary(data[6:9]); err != nil {
		return err
	}
	*r = CalibrationReport{
		Sequence: data[0],
		Channel:  data[1],
		Command:  Command(data[4]),
		Code:     code,
	}
	return nil
}

// TxCodeTable is the peer's answer: up to four TX codes that reached it on
// a channel.
//
// Layout: seq | channel | code[3] x 4 | 2 reserved
type TxCodeTable struct {
	Sequence uint8
	Channel  uint8
	Codes    []Code
}

// MarshalBinary encodes the table, zero filling unused code slots
func (t TxCodeTable) MarshalBinary() ([]byte, error) {
	if len(t.Codes) > MaxTxCodesPerChannel {
		return nil, fmt.Errorf("%w: %d", ErrTooManyCodes, len(t.Codes))
	}
	buf := make([]byte, TxCodeTableSize)
	buf[0] = t.Sequence
	buf[1] = t.Channel
	for i, c := range t.Codes {
		off := 2 + i*CodeSize
		buf[off], buf[off+1], buf[off+2] = c.Coarse, c.Mid, c.Fine
	}
	return buf, nil
}

// UnmarshalBinary decodes a table. All-zero slots are treated as unused.
func (t *TxCodeTable) UnmarshalBinary(data []byte) error {
	if len(data) < TxCodeTableSize {
		return fmt.Errorf("%w: code table needs %d bytes, got %d", ErrShortBuffer, TxCodeTableSize, len(data))
	}
	decoded := TxCodeTable{Sequence: data[0], Channel: data[1]}
	for i := 0; i < MaxTxCodesPerChannel; i++ {
		off := 2 + i*CodeSize
		var c Code
		if err := c.UnmarshalBinary(data[off : off+CodeSize]); err != nil {
			return fmt.Errorf("slot %d: %w", i, err)
		}
		if c == (Code{}) {
			continue
		}
		decoded.Codes = append(decoded.Codes, c)
	}
	*t = decoded
	return nil
}

// AverageFineByMidPair collapses a run of received codes into one code per
// consecutive (coarse, mid) pair. The fine code of each entry is the mean of
// the first and last fine code seen for that pair. At most
// MaxTxCodesPerChannel entries are returned.
func AverageFineByMidPair(codes []Code) []Code {
	var out []Code
	for i := 0; i < len(codes) && len(out) < MaxTxCodesPerChannel; i++ {
		first := codes[i]
		for i+1 < len(codes) && codes[i+1].Coarse == first.Coarse && codes[i+1].Mid == first.Mid {
			i++
		}
		avg := first
		avg.Fine = uint8((int(first.Fine) + int(codes[i].Fine)) / 2)
		out = append(out, avg)
	}
	return out
}
