package bjj

import (
	"encoding/json"
	"math/big"
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestGeneratorOrder(t *testing.T) {
	c := qt.New(t)
	g := New()
	g.SetGenerator()
	c.Assert(g.IsZero(), qt.IsFalse)

	p := New()
	p.ScalarMult(g, g.Order())
	c.Assert(p.IsZero(), qt.IsTrue)
}

func TestAddNeg(t *testing.T) {
	c := qt.New(t)
	a := New()
	a.ScalarBaseMult(big.NewInt(42))
	b := New()
	b.ScalarBaseMult(big.NewInt(58))

	// 42G + 58G == 100G
	sum := New()
	sum.Add(a, b)
	expected := New()
	expected.ScalarBaseMult(big.NewInt(100))
	c.Assert(sum.Equal(expected), qt.IsTrue)

	// 100G - 58G == 42G
	negB := New()
	negB.Neg(b)
	diff := New()
	diff.Add(sum, negB)
	c.Assert(diff.Equal(a), qt.IsTrue)

	// P + (-P) == O
	zero := New()
	zero.Add(b, negB)
	c.Assert(zero.IsZero(), qt.IsTrue)
}

func TestScalarMultDistributes(t *testing.T) {
	c := qt.New(t)
	p := New()
	p.ScalarBaseMult(big.NewInt(123456789))

	// 88 * (123456789 G) == (88 * 123456789) G
	lhs := New()
	lhs.ScalarMult(p, big.NewInt(88))
	rhs := New()
	rhs.ScalarBaseMult(new(big.Int).Mul(big.NewInt(88), big.NewInt(123456789)))
	c.Assert(lhs.Equal(rhs), qt.IsTrue)
}

func TestMarshalUnmarshal(t *testing.T) {
	c := qt.New(t)
	p := New()
	p.ScalarBaseMult(big.NewInt(987654321))

	q := New()
	c.Assert(q.Unmarshal(p.Marshal()), qt.IsNil)
	c.Assert(q.Equal(p), qt.IsTrue)

	data, err := json.Marshal(p)
	c.Assert(err, qt.IsNil)
	r := New()
	c.Assert(json.Unmarshal(data, r), qt.IsNil)
	c.Assert(r.Equal(p), qt.IsTrue)

	x, y := p.Point()
	c.Assert(p.SetPoint(x, y).Equal(p), qt.IsTrue)
}

func TestUnmarshalJSONOffCurve(t *testing.T) {
	c := qt.New(t)
	r := New()
	c.Assert(json.Unmarshal([]byte(`{"x":"1","y":"2"}`), r), qt.ErrorMatches, "point is not on the curve")
}
