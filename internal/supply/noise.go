package supply

import "math"

func mix64(z uint64) uint64 {
	z += 0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

func hash2(seed int64, x, y int) uint64 {
	ux := uint64(uint32(int32(x)))
	uy := uint64(uint32(int32(y)))
	v := uint64(seed) ^ (ux * 0x9e3779b97f4a7c15) ^ (uy * 0xbf58476d1ce4e5b9)
	return mix64(v)
}

func hash3(seed int64, x, y, z int) uint64 {
	ux := uint64(uint32(int32(x)))
	uy := uint64(uint32(int32(y)))
	uz := uint64(uint32(int32(z)))
	v := uint64(seed) ^ (ux * 0x9e3779b97f4a7c15) ^ (uy * 0xc2b2ae3d27d4eb4f) ^ (uz * 0xbf58476d1ce4e5b9)
	return mix64(v)
}

// unit maps a hash to [0,1).
func unit(h uint64) float64 {
	return float64(h>>11) / (1 << 53)
}

// valueNoise is lattice value noise with bilinear interpolation, period 1
// per lattice cell.
func valueNoise(seed int64, x, y float64) float64 {
	xi, yi := int(math.Floor(x)), int(math.Floor(y))
	fx, fy := x-math.Floor(x), y-math.Floor(y)
	v00 := unit(hash2(seed, xi, yi))
	v10 := unit(hash2(seed, xi+1, yi))
	v01 := unit(hash2(seed, xi, yi+1))
	v11 := unit(hash2(seed, xi+1, yi+1))
	sx := fx * fx * (3 - 2*fx)
	sy := fy * fy * (3 - 2*fy)
	a := v00 + (v10-v00)*sx
	b := v01 + (v11-v01)*sx
	return a + (b-a)*sy
}

// fractalNoise sums three octaves of value noise, result in [0,1).
func fractalNoise(seed int64, x, y float64) float64 {
	sum := 0.0
	amp := 0.5
	freq := 1.0
	for oct := 0; oct < 3; oct++ {
		sum += amp * valueNoise(seed+int64(oct), x*freq, y*freq)
		amp /= 2
		freq *= 2
	}
	return sum
}
