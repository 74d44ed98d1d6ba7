package event

import (
	"fmt"
	"sync/atomic"
)

// ID identifies an entry. The two high bits hold the Origin.
type ID int32

// Origin tells where an ID was generated.
type Origin uint32

const (
	originShift = 30
	originMask  = uint32(0x3) << originShift
	counterMask = ^originMask
)

const (
	// OriginReader marks entries read from an input device.
	OriginReader Origin = 0x0 << originShift

	// OriginDispatcher marks entries generated by the dispatcher itself.
	OriginDispatcher Origin = 0x1 << originShift

	// OriginOther marks entries from any other producer (injection, tests).
	OriginOther Origin = 0x3 << originShift
)

// String returns a human-readable origin name.
func (o Origin) String() string {
	switch o {
	case OriginReader:
		return "reader"
	case OriginDispatcher:
		return "dispatcher"
	case OriginOther:
		return "other"
	default:
		return fmt.Sprintf("origin(%#x)", uint32(o))
	}
}

// OriginOf extracts the origin tag embedded in id.
func OriginOf(id ID) Origin {
	return Origin(uint32(id) & originMask)
}

// OriginResolver maps an ID to its origin tag.
type OriginResolver interface {
	Origin(id ID) Origin
}

// OriginResolverFunc is a function adapter for OriginResolver.
type OriginResolverFunc func(id ID) Origin

// Origin implements OriginResolver.
func (f OriginResolverFunc) Origin(id ID) Origin {
	return f(id)
}

// DefaultOriginResolver reads the tag from the ID bits.
var DefaultOriginResolver OriginResolver = OriginResolverFunc(OriginOf)

// IDGenerator produces monotonically increasing IDs for one origin.
// It is safe for concurrent use.
type IDGenerator struct {
	origin Origin
	next   atomic.Uint32
}

// NewIDGenerator creates a generator that tags every ID with origin.
func NewIDGenerator(origin Origin) *IDGenerator {
	return &IDGenerator{origin: origin}
}

// Origin returns the origin stamped on generated IDs.
func (g *IDGenerator) Origin() Origin {
	return g.origin
}

// Next returns the next ID. The counter part is never zero; when it wraps it
// restarts at one.
func (g *IDGenerator) Next() ID {
	for {
		n := g.next.Add(1) & counterMask
		if n != 0 {
			return ID(n | uint32(g.origin))
		}
	}
}
