package dispatch

import "strings"

// TargetFlags describe how an event is delivered to one target.
type TargetFlags uint32

const (
	// TargetForeground marks the target that owns focus or the touch stream.
	TargetForeground TargetFlags = 1 << 0

	// TargetWindowIsObscured marks a target covered by another window at the
	// touch point.
	TargetWindowIsObscured TargetFlags = 1 << 1

	// TargetSplit marks a motion split across several targets.
	TargetSplit TargetFlags = 1 << 2

	// TargetZeroCoords delivers motion coordinates as zero.
	TargetZeroCoords TargetFlags = 1 << 3

	TargetDispatchAsIs            TargetFlags = 1 << 8
	TargetDispatchAsOutside       TargetFlags = 1 << 9
	TargetDispatchAsHoverEnter    TargetFlags = 1 << 10
	TargetDispatchAsHoverExit     TargetFlags = 1 << 11
	TargetDispatchAsSlipperyExit  TargetFlags = 1 << 12
	TargetDispatchAsSlipperyEnter TargetFlags = 1 << 13

	// TargetWindowIsPartiallyObscured marks a target overlapped somewhere
	// other than the touch point.
	TargetWindowIsPartiallyObscured TargetFlags = 1 << 14

	// TargetDispatchMask covers the DispatchAs* modes.
	TargetDispatchMask = TargetDispatchAsIs | TargetDispatchAsOutside |
		TargetDispatchAsHoverEnter | TargetDispatchAsHoverExit |
		TargetDispatchAsSlipperyExit | TargetDispatchAsSlipperyEnter
)

var targetFlagNames = []struct {
	flag TargetFlags
	name string
}{
	{TargetForeground, "FOREGROUND"},
	{TargetWindowIsObscured, "WINDOW_IS_OBSCURED"},
	{TargetSplit, "SPLIT"},
	{TargetZeroCoords, "ZERO_COORDS"},
	{TargetDispatchAsIs, "DISPATCH_AS_IS"},
	{TargetDispatchAsOutside, "DISPATCH_AS_OUTSIDE"},
	{TargetDispatchAsHoverEnter, "DISPATCH_AS_HOVER_ENTER"},
	{TargetDispatchAsHoverExit, "DISPATCH_AS_HOVER_EXIT"},
	{TargetDispatchAsSlipperyExit, "DISPATCH_AS_SLIPPERY_EXIT"},
	{TargetDispatchAsSlipperyEnter, "DISPATCH_AS_SLIPPERY_ENTER"},
	{TargetWindowIsPartiallyObscured, "WINDOW_IS_PARTIALLY_OBSCURED"},
}

// Has reports whether all bits of flag are set.
func (f TargetFlags) Has(flag TargetFlags) bool {
	return f&flag == flag
}

// String returns the set flag names joined by '|'.
func (f TargetFlags) String() string {
	if f == 0 {
		return "0"
	}
	var parts []string
	for _, n := range targetFlagNames {
		if f&n.flag != 0 {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, "|")
}
