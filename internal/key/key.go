// 包 Key 包含了拍卖中各方使用的密钥结构
package key

import (
	"math/big"

	"github.com/CamberLoid/sealedbid/internal/params"
	"github.com/google/uuid"
)

// SignatureKeyChain 是 GOST 34.10-94 签名密钥对
// X 为私钥，仅持有者保存；y = a^x mod p
type SignatureKeyChain struct {
	Identifier uuid.UUID
	Params     *params.DomainParams
	X          *big.Int
	Y          *big.Int
}

// RSAPublicKey 用于封装出价
type RSAPublicKey struct {
	N *big.Int
	E *big.Int
}

// RSAKeyChain 中 p、q 为生成 n 的两个素数，e*d ≡ 1 (mod φ(n))
type RSAKeyChain struct {
	Identifier uuid.UUID
	RSAPublicKey
	D *big.Int
	P *big.Int
	Q *big.Int
}

// ZKKeyChain 是 Feige-Fiat-Shamir 身份密钥，v = (s^2)^{-1} mod n
type ZKKeyChain struct {
	Identifier uuid.UUID
	N          *big.Int
	S          *big.Int
	V          *big.Int
}

// KeyChain 是一个拍卖参与方持有的全部密钥
type KeyChain struct {
	Signature *SignatureKeyChain
	ZK        *ZKKeyChain
}

// Public 返回去掉私钥的副本
func (k *SignatureKeyChain) Public() *SignatureKeyChain {
	return &SignatureKeyChain{Identifier: k.Identifier, Params: k.Params, Y: k.Y}
}

func (k *RSAKeyChain) Public() *RSAPublicKey {
	pub := k.RSAPublicKey
	return &pub
}

func (k *ZKKeyChain) Public() *ZKKeyChain {
	return &ZKKeyChain{Identifier: k.Identifier, N: k.N, V: k.V}
}
