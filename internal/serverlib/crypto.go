package serverlib

import (
	"context"
	"math/big"

	"github.com/CamberLoid/sealedbid/internal/bid"
	"github.com/CamberLoid/sealedbid/internal/bignum"
	"github.com/CamberLoid/sealedbid/internal/ffs"
	"github.com/CamberLoid/sealedbid/internal/key"
	"github.com/CamberLoid/sealedbid/internal/misc"
	"github.com/CamberLoid/sealedbid/internal/params"
	"github.com/CamberLoid/sealedbid/internal/rsa"
	"github.com/CamberLoid/sealedbid/internal/signature"
	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
)

// ServerKeys 是服务端在一个会话内使用的全部密钥
// ZK 与 RSA 共用模数 n。
type ServerKeys struct {
	Params *params.DomainParams
	RSA    *key.RSAKeyChain
	ZK     *key.ZKKeyChain
}

// --- 密钥生成部分 ---

// GenerateServerKeys 生成签名域参数、RSA 密钥和服务端 ZK 身份
// bits 同时是 p 的位数和每个 RSA 素数的位数。
func GenerateServerKeys(ctx context.Context, bits int, src *bignum.EntropySource) (*ServerKeys, error) {
	jww.INFO.Printf("Generating domain parameters, %d bits", bits)
	dp, err := params.Generate(ctx, bits, src)
	if err != nil {
		return nil, errors.Wrap(err, "domain parameters")
	}

	jww.INFO.Printf("Generating RSA key, %d bits per prime", bits)
	rk, err := rsa.GenerateKey(ctx, bits, src)
	if err != nil {
		return nil, errors.Wrap(err, "rsa key")
	}

	zk, err := ffs.GenerateKey(rk.N, src)
	if err != nil {
		return nil, errors.Wrap(err, "zk key")
	}
	jww.DEBUG.Printf("Server keys ready: p=%d bits, n=%d bits", dp.P.BitLen(), rk.N.BitLen())
	return &ServerKeys{Params: dp, RSA: rk, ZK: zk}, nil
}

// --- 签名部分 ---

// ValidateBid 检查密文范围、摘要与签名，依次返回 InvalidParameter、HashMismatch、BadSignature
// 摘要必须由服务端对实际收到的密文重新计算，防止对一个密文签名却提交另一个。
func ValidateBid(keys *ServerKeys, y, ciphertext, h, r, s *big.Int) error {
	if ciphertext == nil || ciphertext.Sign() < 0 || ciphertext.Cmp(keys.RSA.N) >= 0 {
		return misc.Reject(misc.ErrInvalidParameter, "ciphertext out of range [0, n)")
	}
	if h == nil || r == nil || s == nil {
		return misc.Reject(misc.ErrInvalidParameter, "incomplete signature")
	}

	expected := signature.HashToQ(bid.Message(ciphertext), keys.Params.Q)
	if expected.Cmp(h) != 0 {
		return misc.Reject(misc.ErrHashMismatch, "hash does not match the submitted ciphertext")
	}
	if !signature.VerifyHash(h, r, s, keys.Params, y) {
		return misc.Reject(misc.ErrBadSignature, "signature verification failed")
	}
	return nil
}

// --- 开标部分 ---

// Unseal 解密出价密文
func (k *ServerKeys) Unseal(c *big.Int) (*big.Int, error) {
	return rsa.Decrypt(c, k.RSA)
}
