package bignum

import (
	"math/big"

	"github.com/CamberLoid/sealedbid/internal/misc"
	"github.com/cznic/mathutil"
	"github.com/pkg/errors"
)

const (
	// SmallPrimeLimit 是试除筛的上界
	SmallPrimeLimit = 10000
	// DefaultRounds 是 Miller-Rabin 默认轮数
	DefaultRounds = 20
)

var smallPrimes = sieve(SmallPrimeLimit)

// sieve 返回小于等于 limit 的全部素数
func sieve(limit int) []*big.Int {
	composite := make([]bool, limit+1)
	var primes []*big.Int
	for p := 2; p <= limit; p++ {
		if composite[p] {
			continue
		}
		primes = append(primes, big.NewInt(int64(p)))
		for m := p * p; m <= limit; m += p {
			composite[m] = true
		}
	}
	return primes
}

// HasSmallDivisor 判断 n 是否有小于 SmallPrimeLimit 的真因子
// n 本身是小素数时返回 false。
func HasSmallDivisor(n *big.Int) bool {
	r := new(big.Int)
	for _, p := range smallPrimes {
		if n.Cmp(p) == 0 {
			return false
		}
		if r.Mod(n, p).Sign() == 0 {
			return true
		}
	}
	return false
}

// MillerRabin 是带小素数筛的 Miller-Rabin 检验
// 见证数 a 取自 src，范围 [2, n-2]。
func MillerRabin(n *big.Int, rounds int, src *EntropySource) bool {
	if n.Cmp(two) < 0 {
		return false
	}
	if n.Cmp(big.NewInt(3)) <= 0 {
		return true
	}
	if n.Bit(0) == 0 {
		return false
	}

	r := new(big.Int)
	for _, p := range smallPrimes {
		if n.Cmp(p) == 0 {
			return true
		}
		if r.Mod(n, p).Sign() == 0 {
			return false
		}
	}

	span := new(big.Int).Sub(n, big.NewInt(3))
	for i := 0; i < rounds; i++ {
		a, err := src.Below(span)
		if err != nil {
			return false
		}
		if !mathutil.ProbablyPrimeBigInt(n, a.Add(a, two)) {
			return false
		}
	}
	return true
}

// GeneratePrime 生成恰好 bits 位的奇素数
func GeneratePrime(bits, rounds int, src *EntropySource) (*big.Int, error) {
	if bits < 2 {
		return nil, errors.Wrapf(misc.ErrInvalidParameter, "bits must be >= 2, got %d", bits)
	}
	for {
		n, err := src.BitsTop(bits)
		if err != nil {
			return nil, err
		}
		n.SetBit(n, 0, 1)
		if HasSmallDivisor(n) {
			continue
		}
		if MillerRabin(n, rounds, src) {
			return n, nil
		}
	}
}
