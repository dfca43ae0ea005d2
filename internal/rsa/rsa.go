// 包 rsa 实现用于封装出价的教科书 RSA（无填充）
// 两个素数取自 GOST 过程 A 的链首。
package rsa

import (
	"context"
	"math/big"

	"github.com/CamberLoid/sealedbid/internal/bignum"
	"github.com/CamberLoid/sealedbid/internal/key"
	"github.com/CamberLoid/sealedbid/internal/misc"
	"github.com/CamberLoid/sealedbid/internal/params"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
)

// MaxExponentAttempts 次内找不到与 φ 互素的 e 时重新生成 p、q
const MaxExponentAttempts = 100

var (
	one = big.NewInt(1)
	two = big.NewInt(2)
)

// GenerateKey 生成 RSA 密钥，n 约为 2*bitsP 位
func GenerateKey(ctx context.Context, bitsP int, src *bignum.EntropySource) (*key.RSAKeyChain, error) {
	for {
		p, err := chainPrime(ctx, bitsP, src)
		if err != nil {
			return nil, err
		}
		q, err := chainPrime(ctx, bitsP, src)
		if err != nil {
			return nil, err
		}
		if p.Cmp(q) == 0 {
			continue
		}

		n := new(big.Int).Mul(p, q)
		phi := new(big.Int).Mul(new(big.Int).Sub(p, one), new(big.Int).Sub(q, one))

		e, ok, err := pickExponent(phi, src)
		if err != nil {
			return nil, err
		}
		if !ok {
			jww.DEBUG.Printf("rsa: no exponent after %d attempts, regenerating primes", MaxExponentAttempts)
			continue
		}

		d, err := bignum.ModInverse(e, phi)
		if err != nil {
			return nil, err
		}

		return &key.RSAKeyChain{
			Identifier:   uuid.New(),
			RSAPublicKey: key.RSAPublicKey{N: n, E: e},
			D:            d,
			P:            p,
			Q:            q,
		}, nil
	}
}

func chainPrime(ctx context.Context, bits int, src *bignum.EntropySource) (*big.Int, error) {
	p, _, err := params.GeneratePQ(ctx, bits, src)
	return p, errors.Wrap(err, "rsa prime")
}

// pickExponent 在 [2, φ-1] 中随机取 e，要求 gcd(e, φ) = 1
func pickExponent(phi *big.Int, src *bignum.EntropySource) (*big.Int, bool, error) {
	hi := new(big.Int).Sub(phi, one)
	for i := 0; i < MaxExponentAttempts; i++ {
		e, err := src.Range(two, hi)
		if err != nil {
			return nil, false, err
		}
		if bignum.Coprime(e, phi) {
			return e, true, nil
		}
	}
	return nil, false, nil
}

// Encrypt 计算 m^e mod n，要求 0 <= m < n
func Encrypt(m *big.Int, pub *key.RSAPublicKey) (*big.Int, error) {
	if m == nil || m.Sign() < 0 || m.Cmp(pub.N) >= 0 {
		return nil, errors.Wrapf(misc.ErrInvalidParameter, "message %v out of range [0, n)", m)
	}
	return bignum.ModPow(m, pub.E, pub.N), nil
}

// Decrypt 计算 c^d mod n
func Decrypt(c *big.Int, priv *key.RSAKeyChain) (*big.Int, error) {
	if c == nil || c.Sign() < 0 || c.Cmp(priv.N) >= 0 {
		return nil, errors.Wrapf(misc.ErrInvalidParameter, "ciphertext %v out of range [0, n)", c)
	}
	return bignum.ModPow(c, priv.D, priv.N), nil
}

// Sign 是原始 RSA 签名 m^d mod n
func Sign(m *big.Int, priv *key.RSAKeyChain) (*big.Int, error) {
	return Decrypt(m, priv)
}

// Verify 检查 s^e mod n == m
func Verify(m, s *big.Int, pub *key.RSAPublicKey) bool {
	if s == nil || m == nil || s.Sign() < 0 || s.Cmp(pub.N) >= 0 {
		return false
	}
	return bignum.ModPow(s, pub.E, pub.N).Cmp(new(big.Int).Mod(m, pub.N)) == 0
}
