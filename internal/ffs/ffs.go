// 包 ffs 实现单比特 Feige-Fiat-Shamir 零知识身份识别
// 约定公钥 v = (s^2)^{-1} mod n，每轮：z = r^2，b ∈ {0,1}，resp = r * s^b。
package ffs

import (
	"io"
	"math/big"

	"github.com/CamberLoid/sealedbid/internal/bignum"
	"github.com/CamberLoid/sealedbid/internal/key"
	"github.com/CamberLoid/sealedbid/internal/misc"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/tuneinsight/lattigo/v4/utils"
)

const (
	// DefaultRounds 是拍卖使用的轮数 k
	DefaultRounds = 16
	// MaxRounds 是允许的最大轮数
	MaxRounds = 1024

	maxKeyTries = 10000
)

var (
	two   = big.NewInt(2)
	three = big.NewInt(3)
)

// GenerateKey 取 s ∈ [2, n-2]，gcd(s, n) = 1，v = (s^2)^{-1} mod n
func GenerateKey(n *big.Int, src *bignum.EntropySource) (*key.ZKKeyChain, error) {
	if n.Cmp(three) <= 0 {
		return nil, errors.Wrapf(misc.ErrInvalidParameter, "modulus %s too small", n)
	}
	hi := new(big.Int).Sub(n, two)
	for i := 0; i < maxKeyTries; i++ {
		s, err := src.Range(two, hi)
		if err != nil {
			return nil, err
		}
		if !bignum.Coprime(s, n) {
			continue
		}
		s2 := new(big.Int).Mul(s, s)
		v, err := bignum.ModInverse(s2.Mod(s2, n), n)
		if err != nil {
			continue
		}
		return &key.ZKKeyChain{Identifier: uuid.New(), N: n, S: s, V: v}, nil
	}
	return nil, errors.Errorf("no secret coprime to n after %d tries", maxKeyTries)
}

// Commit 取与 n 互素的 r，返回 (r, z = r^2 mod n)，z 不为 0
func Commit(n *big.Int, src *bignum.EntropySource) (r, z *big.Int, err error) {
	if n.Cmp(three) <= 0 {
		return nil, nil, errors.Wrapf(misc.ErrInvalidParameter, "modulus %s too small", n)
	}
	hi := new(big.Int).Sub(n, two)
	for {
		if r, err = src.Range(two, hi); err != nil {
			return nil, nil, err
		}
		if !bignum.Coprime(r, n) {
			continue
		}
		z = new(big.Int).Mul(r, r)
		if z.Mod(z, n).Sign() != 0 {
			return r, z, nil
		}
	}
}

// Respond 返回 b = 0 时的 r，或 b = 1 时的 r*s mod n
func Respond(r, s *big.Int, b uint, n *big.Int) (*big.Int, error) {
	switch b {
	case 0:
		return new(big.Int).Mod(r, n), nil
	case 1:
		resp := new(big.Int).Mul(r, s)
		return resp.Mod(resp, n), nil
	}
	return nil, errors.Wrapf(misc.ErrInvalidParameter, "challenge must be 0 or 1, got %d", b)
}

// Verify 检查 b = 0 时 resp^2 ≡ z，b = 1 时 resp^2 * v ≡ z (mod n)
func Verify(z, resp *big.Int, b uint, v, n *big.Int) bool {
	if z == nil || resp == nil || b > 1 {
		return false
	}
	lhs := new(big.Int).Mul(resp, resp)
	if b == 1 {
		lhs.Mul(lhs, v)
	}
	lhs.Mod(lhs, n)
	return lhs.Cmp(new(big.Int).Mod(z, n)) == 0
}

// --- 挑战比特部分 --- //

// NewChallenger 返回以系统随机数为密钥的 PRNG，作为挑战比特来源
func NewChallenger() (io.Reader, error) {
	prng, err := utils.NewPRNG()
	if err != nil {
		return nil, errors.Wrap(err, "challenge prng")
	}
	return prng, nil
}

// NewKeyedChallenger 返回固定密钥的 PRNG，结果可复现
func NewKeyedChallenger(seed []byte) (io.Reader, error) {
	prng, err := utils.NewKeyedPRNG(seed)
	if err != nil {
		return nil, errors.Wrap(err, "keyed challenge prng")
	}
	return prng, nil
}

// Challenge 从 rng 读取一个均匀比特
func Challenge(rng io.Reader) (uint, error) {
	var b [1]byte
	if _, err := io.ReadFull(rng, b[:]); err != nil {
		return 0, errors.Wrap(err, "read challenge")
	}
	return uint(b[0] & 1), nil
}
