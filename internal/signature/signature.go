// 包 signature 实现基于 GOST R 34.11-94 摘要的 GOST 34.10-94 签名
package signature

import (
	"math/big"

	"github.com/CamberLoid/sealedbid/internal/bignum"
	"github.com/CamberLoid/sealedbid/internal/gost"
	"github.com/CamberLoid/sealedbid/internal/key"
	"github.com/CamberLoid/sealedbid/internal/misc"
	"github.com/CamberLoid/sealedbid/internal/params"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

var (
	one = big.NewInt(1)
	two = big.NewInt(2)
)

// GenerateKey 取 x ∈ [1, q-1]，y = a^x mod p
func GenerateKey(dp *params.DomainParams, src *bignum.EntropySource) (*key.SignatureKeyChain, error) {
	if err := dp.Validate(); err != nil {
		return nil, err
	}
	x, err := src.Range(one, new(big.Int).Sub(dp.Q, one))
	if err != nil {
		return nil, err
	}
	return &key.SignatureKeyChain{
		Identifier: uuid.New(),
		Params:     dp,
		X:          x,
		Y:          bignum.ModPow(dp.A, x, dp.P),
	}, nil
}

// HashToQ 将消息摘要（标准打印字节序，按大端解释）约化到 mod q，结果为 0 时取 1
func HashToQ(msg []byte, q *big.Int) *big.Int {
	sum := gost.Sum(msg)
	h := new(big.Int).SetBytes(sum[:])
	if h.Mod(h, q).Sign() == 0 {
		h.SetInt64(1)
	}
	return h
}

// Sign 对消息签名
func Sign(msg []byte, dp *params.DomainParams, x *big.Int, src *bignum.EntropySource) (r, s *big.Int, err error) {
	return SignHash(HashToQ(msg, dp.Q), dp, x, src)
}

// SignHash 对已约化的摘要 h 签名
// r = (a^k mod p) mod q，s = (k*h + x*r) mod q，r 或 s 为 0 时重取 k。
func SignHash(h *big.Int, dp *params.DomainParams, x *big.Int, src *bignum.EntropySource) (r, s *big.Int, err error) {
	if !bignum.InOpenRange(h, dp.Q) {
		return nil, nil, errors.Wrap(misc.ErrInvalidParameter, "hash out of range (0, q)")
	}
	if !bignum.InOpenRange(x, dp.Q) {
		return nil, nil, errors.Wrap(misc.ErrInvalidParameter, "private key out of range (0, q)")
	}

	qm1 := new(big.Int).Sub(dp.Q, one)
	for {
		k, err := src.Range(one, qm1)
		if err != nil {
			return nil, nil, err
		}
		r = bignum.ModPow(dp.A, k, dp.P)
		r.Mod(r, dp.Q)
		if r.Sign() == 0 {
			continue
		}

		s = new(big.Int).Mul(k, h)
		s.Add(s, new(big.Int).Mul(x, r))
		s.Mod(s, dp.Q)
		if s.Sign() == 0 {
			continue
		}
		return r, s, nil
	}
}

// Verify 验证消息签名
func Verify(msg []byte, r, s *big.Int, dp *params.DomainParams, y *big.Int) bool {
	return VerifyHash(HashToQ(msg, dp.Q), r, s, dp, y)
}

// VerifyHash 验证已约化摘要 h 的签名，r、s 不在 (0, q) 内时直接失败
// v = h^{q-2} mod q，z1 = s*v，z2 = (q-r)*v，u = (a^z1 * y^z2 mod p) mod q，u == r
func VerifyHash(h, r, s *big.Int, dp *params.DomainParams, y *big.Int) bool {
	if dp == nil || y == nil || h == nil {
		return false
	}
	if !bignum.InOpenRange(r, dp.Q) || !bignum.InOpenRange(s, dp.Q) {
		return false
	}

	v := bignum.ModPow(h, new(big.Int).Sub(dp.Q, two), dp.Q)

	z1 := new(big.Int).Mul(s, v)
	z1.Mod(z1, dp.Q)

	z2 := new(big.Int).Sub(dp.Q, r)
	z2.Mul(z2, v)
	z2.Mod(z2, dp.Q)

	u := bignum.ModPow(dp.A, z1, dp.P)
	u.Mul(u, bignum.ModPow(y, z2, dp.P))
	u.Mod(u, dp.P)
	u.Mod(u, dp.Q)

	return u.Cmp(r) == 0
}
