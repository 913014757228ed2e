// Package wire frames the comma-separated text datagrams exchanged with the
// tracking process and the renderer. One datagram carries one message.
package wire

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/banshee-data/rig/internal/pose"
)

// Field positions of the motion delta inside a tracking record.
const (
	SidestepField = 6
	ForwardField  = 7
	RotationField = 8
)

// MaxDatagram is the receive buffer size used by both loops.
const MaxDatagram = 1024

var (
	ErrFieldCount = errors.New("wrong field count")
	ErrNotFinite  = errors.New("non-finite value")
)

func fields(b []byte) []string {
	s := string(bytes.Trim(b, " \t\r\n\x00"))
	return strings.Split(s, ",")
}

func parseFinite(name, s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse %s: %w", name, err)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("failed to parse %s %q: %w", name, s, ErrNotFinite)
	}
	return v, nil
}

// ParseMotionDelta extracts sidestep, forward and rotation from fields 6, 7
// and 8 of a tracking record. Other fields are ignored but must be present.
func ParseMotionDelta(b []byte) (pose.Delta, error) {
	segments := fields(b)
	if len(segments) <= RotationField {
		return pose.Delta{}, fmt.Errorf("tracking record has %d fields, need at least %d: %w",
			len(segments), RotationField+1, ErrFieldCount)
	}

	var d pose.Delta
	var err error
	if d.Sidestep, err = parseFinite("sidestep", segments[SidestepField]); err != nil {
		return pose.Delta{}, err
	}
	if d.Forward, err = parseFinite("forward", segments[ForwardField]); err != nil {
		return pose.Delta{}, err
	}
	if d.Rotation, err = parseFinite("rotation", segments[RotationField]); err != nil {
		return pose.Delta{}, err
	}
	return d, nil
}

// AppendPose appends "a,b,heading" with one decimal place to dst.
func AppendPose(dst []byte, a, b, heading float64) []byte {
	dst = strconv.AppendFloat(dst, a, 'f', 1, 64)
	dst = append(dst, ',')
	dst = strconv.AppendFloat(dst, b, 'f', 1, 64)
	dst = append(dst, ',')
	return strconv.AppendFloat(dst, heading, 'f', 1, 64)
}

// ParseFrameZone decodes a "frame_count,zone" message. Both values may be
// written as decimals and are truncated toward zero.
func ParseFrameZone(b []byte) (frameCount, zone int, err error) {
	segments := fields(b)
	if len(segments) != 2 {
		return 0, 0, fmt.Errorf("zone message has %d fields, expected 2: %w", len(segments), ErrFieldCount)
	}

	f, err := parseFinite("frame_count", segments[0])
	if err != nil {
		return 0, 0, err
	}
	z, err := parseFinite("zone", segments[1])
	if err != nil {
		return 0, 0, err
	}
	if math.Abs(f) >= math.MaxInt32 || math.Abs(z) >= math.MaxInt32 {
		return 0, 0, fmt.Errorf("zone message %q out of range", b)
	}
	return int(f), int(z), nil
}
