package sbus

import (
	"fmt"
	"math"
	"strings"

	"pico-gimbal/utils"
)

type ReceiverType uint8

const (
	ReceiverUnknown ReceiverType = iota
	ReceiverAT9SPro
	ReceiverHT8A
	ReceiverET08A
	ReceiverESP32Tracker
)

func (t ReceiverType) String() string {
	switch t {
	case ReceiverAT9SPro:
		return "AT9S-PRO"
	case ReceiverHT8A:
		return "HT8A"
	case ReceiverET08A:
		return "ET08A"
	case ReceiverESP32Tracker:
		return "ESP32-tracker"
	}
	return "unknown"
}

// Profile is the calibration of one receiver model.
type Profile struct {
	Type             ReceiverType
	Min, Center, Max uint16
	Flag             byte // connection flag the model reports at byte 23
	Classifiable     bool // false when Flag is not unique to the model

	// Scaled profiles spread the raw value over [ScaleMin, ScaleMax] instead
	// of normalizing around Center.
	Scaled             bool
	ScaleMin, ScaleMax float64
	Bits               uint

	PitchChannel, YawChannel int
}

var profiles = [...]Profile{
	ReceiverUnknown: {
		Type:         ReceiverUnknown,
		PitchChannel: 1,
		YawChannel:   0,
	},
	ReceiverAT9SPro: {
		Type:         ReceiverAT9SPro,
		Min:          200,
		Center:       1000,
		Max:          1800,
		Flag:         12,
		Classifiable: true,
		PitchChannel: 1,
		YawChannel:   0,
	},
	ReceiverHT8A: {
		Type:         ReceiverHT8A,
		Min:          172,
		Center:       992,
		Max:          1811,
		PitchChannel: 1,
		YawChannel:   0,
	},
	ReceiverET08A: {
		Type:         ReceiverET08A,
		Min:          353,
		Center:       1024,
		Max:          1694,
		Flag:         0,
		Classifiable: true,
		PitchChannel: 1,
		YawChannel:   0,
	},
	ReceiverESP32Tracker: {
		Type:         ReceiverESP32Tracker,
		Flag:         0x01,
		Classifiable: true,
		Scaled:       true,
		ScaleMin:     -math.Pi / 2,
		ScaleMax:     math.Pi / 2,
		Bits:         channelBits,
		PitchChannel: 1,
		YawChannel:   2,
	},
}

// ProfileFor returns the calibration for t, or the neutral profile.
func ProfileFor(t ReceiverType) Profile {
	if int(t) >= len(profiles) {
		return profiles[ReceiverUnknown]
	}
	return profiles[t]
}

// Classify maps a connection flag to the receiver model that reports it.
func Classify(flag byte) ReceiverType {
	for _, p := range profiles {
		if p.Classifiable && p.Flag == flag {
			return p.Type
		}
	}
	return ReceiverUnknown
}

// Normalize converts a raw channel reading to radians. The unknown receiver
// always reads neutral.
func (p Profile) Normalize(raw uint16) float64 {
	switch {
	case p.Type == ReceiverUnknown:
		return 0
	case p.Scaled:
		return utils.UintToFloat(raw, p.ScaleMin, p.ScaleMax, p.Bits)
	}
	return (float64(raw) - float64(p.Center)) / float64(p.Max-p.Min) * 2
}

// Raw is the inverse of Normalize, clipped to the 11-bit channel range.
func (p Profile) Raw(v float64) uint16 {
	switch {
	case p.Type == ReceiverUnknown:
		return 0
	case p.Scaled:
		return utils.FloatToUint(v, p.ScaleMin, p.ScaleMax, p.Bits)
	}
	raw := math.Round(v/2*float64(p.Max-p.Min) + float64(p.Center))
	return uint16(utils.Clamp(raw, 0, channelMask))
}

// ParseReceiverType accepts the names printed by String, case-insensitively.
func ParseReceiverType(name string) (ReceiverType, error) {
	for t := range profiles {
		rt := ReceiverType(t)
		if strings.EqualFold(rt.String(), name) {
			return rt, nil
		}
	}
	return ReceiverUnknown, fmt.Errorf("invalid receiver type: %q", name)
}
