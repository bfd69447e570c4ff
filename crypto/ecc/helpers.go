package ecc

import "math/big"

// BigToFF function returns the finite field representation of the big.Int
// provided. It uses the curve scalar field to represent the provided number.
func BigToFF(baseField, iv *big.Int) *big.Int {
	z := big.NewInt(0)
	if c := iv.Cmp(baseField); c == 0 {
		return z
	} else if c != 1 && iv.Cmp(z) != -1 {
		return iv
	}
	return z.Mod(iv, baseField)
}

// Coordinates returns the affine coordinates of the given points in order,
// ready to be absorbed by a hash function.
func Coordinates(points ...Point) []*big.Int {
	coords := make([]*big.Int, 0, 2*len(points))
	for _, p := range points {
		x, y := p.Point()
		coords = append(coords, x, y)
	}
	return coords
}
