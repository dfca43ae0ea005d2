// 包 params 按 GOST R 34.10-94 过程 A 生成域参数 (p, q, a)
package params

import (
	"context"
	"math/big"

	"github.com/CamberLoid/sealedbid/internal/bignum"
	"github.com/CamberLoid/sealedbid/internal/misc"
	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
)

const (
	// MinBits 是 p 的最小位数：链至少要有两级才能得到 q
	MinBits = 18
	// DefaultBits 是拍卖使用的 p 位数
	DefaultBits = 512

	// 链的最后一级不超过 17 位
	chainFloor = 17
	// 初始小素数的 Miller-Rabin 轮数
	smallPrimeRounds = 10

	lcgMul = 19381
)

var (
	one = big.NewInt(1)
	two = big.NewInt(2)
)

// DomainParams 是签名方案的公共参数
// q | p-1，1 < a < p，a^q ≡ 1 (mod p)
type DomainParams struct {
	P *big.Int
	Q *big.Int
	A *big.Int
}

// Seed 是过程 A 中 16 位线性同余序列的初值 x0 与增量 c（奇数）
type Seed struct {
	X0 uint16
	C  uint16
}

// Generate 生成完整的域参数
func Generate(ctx context.Context, bitsP int, src *bignum.EntropySource) (*DomainParams, error) {
	p, q, err := GeneratePQ(ctx, bitsP, src)
	if err != nil {
		return nil, err
	}
	a, err := GenerateA(p, q, src)
	if err != nil {
		return nil, err
	}
	return &DomainParams{P: p, Q: q, A: a}, nil
}

// GeneratePQ 用随机种子执行过程 A
func GeneratePQ(ctx context.Context, bitsP int, src *bignum.EntropySource) (p, q *big.Int, err error) {
	seed, err := RandomSeed(src)
	if err != nil {
		return nil, nil, err
	}
	return GeneratePQWithSeed(ctx, bitsP, seed, src)
}

// RandomSeed 在 [1, 2^16-1] 中取 x0 与 c，c 强制为奇数
func RandomSeed(src *bignum.EntropySource) (seed Seed, err error) {
	x0, err := src.RangeInt64(1, 0xFFFF)
	if err != nil {
		return
	}
	c, err := src.RangeInt64(1, 0xFFFF)
	if err != nil {
		return
	}
	return Seed{X0: uint16(x0), C: uint16(c) | 1}, nil
}

// GeneratePQWithSeed 执行过程 A：从不超过 17 位的小素数开始逐级提升，
// 返回链的第 0 级作为 p、第 1 级作为 q。
// ctx 在每次重新计算 N 之前检查。
func GeneratePQWithSeed(ctx context.Context, bitsP int, seed Seed, src *bignum.EntropySource) (p, q *big.Int, err error) {
	if bitsP < MinBits {
		return nil, nil, errors.Wrapf(misc.ErrInvalidParameter, "bits_p must be >= %d, got %d", MinBits, bitsP)
	}
	if seed.C%2 == 0 {
		return nil, nil, errors.Wrapf(misc.ErrInvalidParameter, "lcg increment must be odd, got %d", seed.C)
	}

	chain := BitChain(bitsP)
	s := len(chain) - 1

	primes := make([]*big.Int, len(chain))
	if primes[s], err = smallPrime(chain[s], src); err != nil {
		return nil, nil, err
	}
	jww.DEBUG.Printf("params: chain %v, p_%d = %s", chain, s, primes[s])

	y0 := seed.X0
	for m := s - 1; m >= 0; m-- {
		if primes[m], y0, err = lift(ctx, primes[m+1], chain[m], y0, seed.C); err != nil {
			return nil, nil, err
		}
		jww.DEBUG.Printf("params: p_%d has %d bits", m, primes[m].BitLen())
	}

	return primes[0], primes[1], nil
}

// BitChain 返回 t0 = bits, t_{i+1} = floor(t_i / 2)，直到 t_s <= 17
func BitChain(bits int) []int {
	chain := []int{bits}
	for t := bits; t > chainFloor; {
		t /= 2
		chain = append(chain, t)
	}
	return chain
}

// smallPrime 生成链底端恰好 bits 位的素数
func smallPrime(bits int, src *bignum.EntropySource) (*big.Int, error) {
	for {
		n, err := src.BitsTop(bits)
		if err != nil {
			return nil, err
		}
		n.SetBit(n, 0, 1)
		if bignum.HasSmallDivisor(n) {
			continue
		}
		if bignum.MillerRabin(n, smallPrimeRounds, src) {
			return n, nil
		}
	}
}

// lift 由素数 q = p_{m+1} 构造 t 位素数 p_m = q(N+k) + 1
// 返回 p_m 以及下一级使用的 y0。
func lift(ctx context.Context, q *big.Int, t int, y0, c uint16) (*big.Int, uint16, error) {
	r := t / 16
	if r == 0 {
		r = 1
	}

	limit := new(big.Int).Lsh(one, uint(t))
	half := new(big.Int).Lsh(one, uint(t-1))
	denom := new(big.Int).Lsh(q, uint(16*r))

	for {
		if err := ctx.Err(); err != nil {
			return nil, 0, errors.Wrap(err, "domain parameter search aborted")
		}

		// Y = sum y_{i+1} * 2^{16i}
		Y := new(big.Int)
		y := y0
		for i := 0; i < r; i++ {
			y = y*lcgMul + c
			Y.Or(Y, new(big.Int).Lsh(big.NewInt(int64(y)), uint(16*i)))
		}
		y0 = uint16(Y.Uint64())

		// N = floor(2^{t-1} / q) + floor(2^{t-1} * Y / (q * 2^{16r}))，取偶
		N := new(big.Int).Quo(half, q)
		term := new(big.Int).Mul(half, Y)
		N.Add(N, term.Quo(term, denom))
		if N.Bit(0) == 1 {
			N.Add(N, one)
		}

		if p, ok := searchK(q, N, limit); ok {
			return p, y0, nil
		}
	}
}

// searchK 依次尝试 k = 0, 2, 4, ...，p 超过 2^t 时放弃
func searchK(q, N, limit *big.Int) (*big.Int, bool) {
	nk := new(big.Int).Set(N)
	for ; ; nk.Add(nk, two) {
		p := new(big.Int).Mul(q, nk)
		p.Add(p, one)
		if p.Cmp(limit) > 0 {
			return nil, false
		}

		// 2^{q(N+k)} ≡ 1 且 2^{N+k} ≢ 1 (mod p)
		e := new(big.Int).Mul(q, nk)
		if bignum.ModPow(two, e, p).Cmp(one) == 0 && bignum.ModPow(two, nk, p).Cmp(one) != 0 {
			return p, true
		}
	}
}

// GenerateA 取 h ∈ [2, p-2]，a = h^{(p-1)/q} mod p，直到 1 < a 且 a^q ≡ 1
func GenerateA(p, q *big.Int, src *bignum.EntropySource) (*big.Int, error) {
	if p.Cmp(big.NewInt(5)) < 0 || q.Sign() <= 0 {
		return nil, errors.Wrap(misc.ErrInvalidParameter, "p and q are too small")
	}
	pm1 := new(big.Int).Sub(p, one)
	exp, rem := new(big.Int).QuoRem(pm1, q, new(big.Int))
	if rem.Sign() != 0 {
		return nil, errors.Wrap(misc.ErrInvalidParameter, "q does not divide p-1")
	}

	span := new(big.Int).Sub(p, big.NewInt(4))
	for {
		h, err := src.Range(big.NewInt(0), span)
		if err != nil {
			return nil, err
		}
		a := bignum.ModPow(h.Add(h, two), exp, p)
		if a.Cmp(one) > 0 && a.Cmp(p) < 0 && bignum.ModPow(a, q, p).Cmp(one) == 0 {
			return a, nil
		}
	}
}

// Validate 检查域参数的代数关系
func (dp *DomainParams) Validate() error {
	if dp == nil || dp.P == nil || dp.Q == nil || dp.A == nil {
		return errors.Wrap(misc.ErrInvalidParameter, "incomplete domain parameters")
	}
	if dp.Q.Sign() <= 0 || new(big.Int).Mod(new(big.Int).Sub(dp.P, one), dp.Q).Sign() != 0 {
		return errors.Wrap(misc.ErrInvalidParameter, "q does not divide p-1")
	}
	if dp.A.Cmp(one) <= 0 || dp.A.Cmp(dp.P) >= 0 {
		return errors.Wrap(misc.ErrInvalidParameter, "a out of range")
	}
	if bignum.ModPow(dp.A, dp.Q, dp.P).Cmp(one) != 0 {
		return errors.Wrap(misc.ErrInvalidParameter, "a^q != 1 mod p")
	}
	return nil
}
