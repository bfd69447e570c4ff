// Package elgamal implements additively homomorphic (exponential) ElGamal
// encryption over an ecc.Point group. Messages are encoded as m*G, so the
// sum of two ciphertexts decrypts to the sum of their messages, and
// decryption requires solving a small discrete logarithm.
package elgamal

import (
	"crypto/rand"
	"fmt"
	"math"
	"math/big"

	"github.com/vocdoni/silentvote/crypto/ecc"
	"github.com/vocdoni/silentvote/util"
)

// RandK function generates a random k value for encryption, uniform in the
// group order of the given curve.
func RandK(curve ecc.Point) (*big.Int, error) {
	k, err := util.RandomScalar(curve.Order())
	if err != nil {
		return nil, fmt.Errorf("failed to generate random k: %w", err)
	}
	return k, nil
}

// Encrypt function encrypts a message using the public key provided as
// elliptic curve point. It generates a random k and returns the two points
// that represent the encrypted message and the random k used to encrypt it.
// It returns an error if any.
func Encrypt(publicKey ecc.Point, msg *big.Int) (ecc.Point, ecc.Point, *big.Int, error) {
	k, err := RandK(publicKey)
	if err != nil {
		return nil, nil, nil, err
	}
	c1, c2, err := EncryptWithK(publicKey, msg, k)
	if err != nil {
		return nil, nil, nil, err
	}
	return c1, c2, k, nil
}

// EncryptWithK function encrypts a message using the public key provided as
// elliptic curve point and the random k value provided. It returns the two
// points that represent the encrypted message and error if any.
func EncryptWithK(pubKey ecc.Point, msg, k *big.Int) (ecc.Point, ecc.Point, error) {
	if msg.Sign() < 0 {
		return nil, nil, fmt.Errorf("negative message")
	}
	order := pubKey.Order()
	m := new(big.Int).Mod(msg, order)
	// compute C1 = k * G
	c1 := pubKey.New()
	c1.ScalarBaseMult(k)
	// compute s = k * pubKey
	s := pubKey.New()
	s.ScalarMult(pubKey, k)
	// encode message as point M = message * G
	mPoint := pubKey.New()
	mPoint.ScalarBaseMult(m)
	// compute C2 = M + s
	c2 := pubKey.New()
	c2.Add(mPoint, s)
	return c1, c2, nil
}

// GenerateKey generates a new public/private ElGamal encryption key pair.
func GenerateKey(curve ecc.Point) (publicKey ecc.Point, privateKey *big.Int, err error) {
	d, err := rand.Int(rand.Reader, curve.Order())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate private key scalar: %v", err)
	}
	if d.Sign() == 0 {
		d = big.NewInt(1) // avoid zero private keys
	}
	publicKey = curve.New()
	publicKey.SetGenerator()
	publicKey.ScalarMult(publicKey, d)
	return publicKey, d, nil
}

// Decrypt decrypts the given ciphertext (c1, c2) using the private key.
// It returns the point M = c2 - d*c1 and the discrete log message scalar.
// If no solution is found, returns an error.
func Decrypt(publicKey ecc.Point, privateKey *big.Int, c1, c2 ecc.Point, maxMessage uint64) (M ecc.Point, message *big.Int, err error) {
	dC1 := c2.New()
	dC1.ScalarMult(c1, privateKey)
	dC1.Neg(dC1)

	M = c2.New()
	M.Add(c2, dC1)

	G := publicKey.New()
	G.SetGenerator()
	message, err = BabyStepGiantStepECC(M, G, maxMessage)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to find discrete log: %v", err)
	}
	return M, message, nil
}

// BabyStepGiantStepECC solves M = x*G for x in [0, maxMessage]
// using the baby-step giant-step algorithm over elliptic curves.
func BabyStepGiantStepECC(M, G ecc.Point, maxMessage uint64) (*big.Int, error) {
	mSqrt := uint64(math.Sqrt(float64(maxMessage))) + 1

	// baby steps: j*G for j in [0, mSqrt)
	babySteps := make(map[string]uint64, mSqrt)
	babyStep := M.New()
	babyStep.SetZero()
	for j := uint64(0); j < mSqrt; j++ {
		babySteps[string(babyStep.Marshal())] = j
		babyStep.Add(babyStep, G)
	}

	// c = mSqrt * (-G)
	c := M.New()
	c.ScalarMult(G, new(big.Int).SetUint64(mSqrt))
	c.Neg(c)

	giantStep := M.New()
	giantStep.Set(M)
	for i := uint64(0); i <= mSqrt; i++ {
		if j, found := babySteps[string(giantStep.Marshal())]; found {
			x := i*mSqrt + j
			if x > maxMessage {
				break
			}
			return new(big.Int).SetUint64(x), nil
		}
		giantStep.Add(giantStep, c)
	}
	return nil, fmt.Errorf("failed to compute discrete logarithm using Baby-Step Giant-Step algorithm")
}

// CheckK checks if a given k was used to produce the ciphertext (c1, c2) under the given publicKey.
// It returns true if c1 == k * G, false otherwise.
func CheckK(c1 ecc.Point, k *big.Int) bool {
	kCheck := c1.New()
	kCheck.ScalarBaseMult(k)
	return kCheck.Equal(c1)
}
