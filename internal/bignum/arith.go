// 包 bignum 包含大整数运算、素性检验以及 LCG 熵源
package bignum

import (
	"math/big"

	"github.com/CamberLoid/sealedbid/internal/misc"
	"github.com/pkg/errors"
)

var (
	one = big.NewInt(1)
	two = big.NewInt(2)
)

// ModPow 计算 base^exp mod m，exp 须非负，m 须为正
func ModPow(base, exp, m *big.Int) *big.Int {
	return new(big.Int).Exp(base, exp, m)
}

// ModInverse 用扩展欧几里得算法求 a 在模 m 下的逆元
// gcd(a, m) != 1 时返回 misc.ErrNoInverse
func ModInverse(a, m *big.Int) (*big.Int, error) {
	if m.Sign() <= 0 {
		return nil, errors.Wrap(misc.ErrInvalidParameter, "modulus must be positive")
	}
	r := new(big.Int).Mod(a, m)
	if r.Sign() == 0 {
		return nil, errors.Wrapf(misc.ErrNoInverse, "%s is divisible by the modulus", a)
	}

	x := new(big.Int)
	g := new(big.Int).GCD(x, nil, r, m)
	if g.Cmp(one) != 0 {
		return nil, errors.Wrapf(misc.ErrNoInverse, "gcd = %s", g)
	}
	return x.Mod(x, m), nil
}

// Coprime 判断 gcd(a, b) == 1
func Coprime(a, b *big.Int) bool {
	return new(big.Int).GCD(nil, nil, a, b).Cmp(one) == 0
}

// InOpenRange 判断 0 < x < n
func InOpenRange(x, n *big.Int) bool {
	return x != nil && x.Sign() > 0 && x.Cmp(n) < 0
}
