// Package supply defines the content addressing scheme shared by viewer
// and server, the octree tile family, and a deterministic procedural
// content producer backing the server.
package supply

import (
	"fmt"
	"strconv"
	"strings"
)

// Addr locates one tile payload: octree cell plus optional refinement
// multiplier. The zero Mult means unrefined.
type Addr struct {
	D, X, Y, Z int
	Mult       float64
}

func (a Addr) String() string {
	base := fmt.Sprintf("%d/%d/%d/%d", a.D, a.X, a.Y, a.Z)
	if a.Mult > 1 {
		return base + "@" + strconv.FormatFloat(a.Mult, 'g', -1, 64)
	}
	return base
}

func ParseAddr(id string) (Addr, bool) {
	var a Addr
	if at := strings.IndexByte(id, '@'); at >= 0 {
		m, err := strconv.ParseFloat(id[at+1:], 64)
		if err != nil || m <= 1 {
			return a, false
		}
		a.Mult = m
		id = id[:at]
	}
	parts := strings.Split(id, "/")
	if len(parts) != 4 {
		return a, false
	}
	vals := [4]int{}
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil || v < 0 {
			return a, false
		}
		vals[i] = v
	}
	a.D, a.X, a.Y, a.Z = vals[0], vals[1], vals[2], vals[3]
	lim := 1 << uint(a.D)
	if a.X >= lim || a.Y >= lim || a.Z >= lim {
		return a, false
	}
	return a, true
}

// Child returns the address of octant i (bit 0 = +X, bit 1 = +Y, bit 2 = +Z).
func (a Addr) Child(i int) Addr {
	return Addr{
		D: a.D + 1,
		X: a.X<<1 | i&1,
		Y: a.Y<<1 | i>>1&1,
		Z: a.Z<<1 | i>>2&1,
	}
}
