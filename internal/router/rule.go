package router

// Rule relays messages of one peripheral to another peripheral on the same
// device channel.
type Rule struct {
	// Source is the peripheral whose messages are relayed (e.g. "sw").
	Source string

	// Target is the peripheral the output is addressed to (e.g. "led").
	Target string
}

// DefaultRule relays switch input to LED output.
var DefaultRule = Rule{Source: "sw", Target: "led"}

// Apply returns the output fields for in, and whether the rule matched.
//
// The rule matches on the peripheral alone; the inbound direction is not
// checked. The output direction is always out. Device, UUID and Index are
// copied unchanged.
func (r Rule) Apply(in Fields) (Fields, bool) {
	if in.Peripheral != r.Source {
		return Fields{}, false
	}

	return Fields{
		Device:     in.Device,
		UUID:       in.UUID,
		Direction:  DirectionOut,
		Peripheral: r.Target,
		Index:      in.Index,
	}, true
}
