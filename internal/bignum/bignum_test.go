package bignum_test

import (
	"math/big"
	"testing"

	"github.com/CamberLoid/sealedbid/internal/bignum"
	"github.com/CamberLoid/sealedbid/internal/misc"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/blake2b"
)

func seeded(tag string) *bignum.EntropySource {
	return bignum.NewSeededEntropySource([]byte("bignum-test/" + tag))
}

func TestModInverse(t *testing.T) {
	inv, err := bignum.ModInverse(big.NewInt(3), big.NewInt(11))
	require.NoError(t, err)
	require.Equal(t, int64(4), inv.Int64())

	// 负数先约化
	inv, err = bignum.ModInverse(big.NewInt(-3), big.NewInt(11))
	require.NoError(t, err)
	require.Equal(t, int64(7), inv.Int64())

	_, err = bignum.ModInverse(big.NewInt(6), big.NewInt(9))
	require.True(t, errors.Is(err, misc.ErrNoInverse), "got %v", err)

	_, err = bignum.ModInverse(big.NewInt(9), big.NewInt(9))
	require.True(t, errors.Is(err, misc.ErrNoInverse), "got %v", err)
}

func TestModPow(t *testing.T) {
	require.Equal(t, int64(445), bignum.ModPow(big.NewInt(4), big.NewInt(13), big.NewInt(497)).Int64())
	require.Equal(t, int64(1), bignum.ModPow(big.NewInt(5), big.NewInt(0), big.NewInt(7)).Int64())
}

func TestMillerRabin(t *testing.T) {
	src := seeded("mr")
	m127 := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 127), big.NewInt(1))
	m89 := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 89), big.NewInt(1))

	primes := []*big.Int{big.NewInt(2), big.NewInt(3), big.NewInt(9973), big.NewInt(10007), big.NewInt(1000003), m89, m127}
	for _, p := range primes {
		require.True(t, bignum.MillerRabin(p, bignum.DefaultRounds, src), "%s should be prime", p)
	}

	composites := []*big.Int{
		big.NewInt(0), big.NewInt(1), big.NewInt(4), big.NewInt(561), big.NewInt(10007 * 10009),
		new(big.Int).Mul(m89, m127),
	}
	for _, c := range composites {
		require.False(t, bignum.MillerRabin(c, bignum.DefaultRounds, src), "%s should be composite", c)
	}
}

func TestHasSmallDivisor(t *testing.T) {
	require.False(t, bignum.HasSmallDivisor(big.NewInt(7)))
	require.True(t, bignum.HasSmallDivisor(big.NewInt(7*10007)))
	require.False(t, bignum.HasSmallDivisor(big.NewInt(10007)))
}

func TestSeededSourceIsReproducible(t *testing.T) {
	a, b := seeded("same"), seeded("same")
	for i := 0; i < 8; i++ {
		require.Equal(t, 0, a.Next().Cmp(b.Next()))
	}
	require.NotEqual(t, 0, seeded("x").Next().Cmp(seeded("y").Next()))
}

func TestFreshSourcesDiffer(t *testing.T) {
	a, b := bignum.NewEntropySource(), bignum.NewEntropySource()
	require.NotEqual(t, 0, a.Next().Cmp(b.Next()))
}

func TestRandomBounds(t *testing.T) {
	src := seeded("bounds")
	lo, hi := big.NewInt(10), big.NewInt(17)
	seen := map[int64]bool{}
	for i := 0; i < 500; i++ {
		r, err := src.Range(lo, hi)
		require.NoError(t, err)
		require.True(t, r.Cmp(lo) >= 0 && r.Cmp(hi) <= 0, "out of range: %s", r)
		seen[r.Int64()] = true
	}
	require.Len(t, seen, 8)

	for _, n := range []int{1, 7, 255, 256, 257, 700} {
		v, err := src.Bits(n)
		require.NoError(t, err)
		require.LessOrEqual(t, v.BitLen(), n)

		v, err = src.BitsTop(n)
		require.NoError(t, err)
		require.Equal(t, n, v.BitLen())
	}

	_, err := src.Bits(0)
	require.True(t, errors.Is(err, misc.ErrInvalidParameter))
	_, err = src.Range(hi, lo)
	require.True(t, errors.Is(err, misc.ErrInvalidParameter))
	_, err = src.Below(big.NewInt(0))
	require.True(t, errors.Is(err, misc.ErrInvalidParameter))
}

func TestMixEntropy(t *testing.T) {
	a := bignum.MixEntropy([]byte("entropy"), bignum.SeedMixRounds)
	b := bignum.MixEntropy([]byte("entropy"), bignum.SeedMixRounds)
	require.Len(t, a, 32)
	require.Equal(t, a, b)
	require.NotEqual(t, a, bignum.MixEntropy([]byte("entropy"), 3))
}

// 一轮：blake2b-256(acc || 0x0000 || reverse(acc))
func TestMixEntropyOneRound(t *testing.T) {
	in := []byte("abc")
	want := blake2b.Sum256([]byte{'a', 'b', 'c', 0, 0, 'c', 'b', 'a'})
	require.Equal(t, want[:], bignum.MixEntropy(in, 1))
}

func TestGeneratePrime(t *testing.T) {
	src := seeded("prime")
	for _, bits := range []int{16, 64, 128} {
		p, err := bignum.GeneratePrime(bits, bignum.DefaultRounds, src)
		require.NoError(t, err)
		require.Equal(t, bits, p.BitLen())
		require.True(t, p.ProbablyPrime(20))
	}
}
