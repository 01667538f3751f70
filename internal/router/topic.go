package router

import (
	"fmt"
	"regexp"
)

// Direction segment literals.
const (
	DirectionIn  = "in"
	DirectionOut = "out"
)

// Topic segment literals.
const (
	segmentDev  = "dev"
	segmentUUID = "uuid"

	// wildcard is the MQTT single-level wildcard.
	wildcard = "+"
)

// peripheralPattern matches the complete peripheral grammar. Segments:
// dev and peripheral are word characters, uuid is lowercase hex with
// hyphens, index is decimal digits.
var peripheralPattern = regexp.MustCompile(
	`^dev/(?P<dev>[A-Za-z0-9_]+)/uuid/(?P<uuid>[0-9a-f-]+)/(?P<dir>in|out)/(?P<peripheral>[A-Za-z0-9_]+)/(?P<index>[0-9]+)$`,
)

// Capture group indexes into peripheralPattern submatches.
var (
	groupDev        = peripheralPattern.SubexpIndex("dev")
	groupUUID       = peripheralPattern.SubexpIndex("uuid")
	groupDir        = peripheralPattern.SubexpIndex("dir")
	groupPeripheral = peripheralPattern.SubexpIndex("peripheral")
	groupIndex      = peripheralPattern.SubexpIndex("index")
)

// Fields are the segments of a parsed peripheral topic.
//
// Index is kept as the original digit string so that it is carried
// through byte-for-byte (leading zeros included).
type Fields struct {
	Device     string
	UUID       string
	Direction  string
	Peripheral string
	Index      string
}

// Topic rebuilds the wire topic from the fields.
func (f Fields) Topic() string {
	return PeripheralTopic(f.Device, f.UUID, f.Direction, f.Peripheral, f.Index)
}

// Parse splits a peripheral topic into its fields.
//
// Any deviation from the grammar (missing or extra segment, a direction
// other than in/out, a non-hex uuid, a non-digit index) returns
// ErrInvalidTopic. Parse never panics.
func Parse(topic string) (Fields, error) {
	m := peripheralPattern.FindStringSubmatch(topic)
	if m == nil {
		return Fields{}, fmt.Errorf("%w: %q", ErrInvalidTopic, topic)
	}

	return Fields{
		Device:     m[groupDev],
		UUID:       m[groupUUID],
		Direction:  m[groupDir],
		Peripheral: m[groupPeripheral],
		Index:      m[groupIndex],
	}, nil
}

// PeripheralTopic returns the topic for one peripheral channel.
//
// Example: dev/pcu/uuid/1234-5678/out/led/3
func PeripheralTopic(dev, uuid, dir, peripheral, index string) string {
	return fmt.Sprintf("%s/%s/%s/%s/%s/%s/%s", segmentDev, dev, segmentUUID, uuid, dir, peripheral, index)
}

// PeripheralFilter returns a subscription filter matching every uuid and
// index of one peripheral on one device.
//
// Pattern: dev/pcu/uuid/+/in/sw/+
func PeripheralFilter(dev, dir, peripheral string) string {
	return PeripheralTopic(dev, wildcard, dir, peripheral, wildcard)
}
