// crypto.go: 出价的封装与签名

package clientlib

import (
	"math/big"

	"github.com/CamberLoid/sealedbid/internal/bid"
	"github.com/CamberLoid/sealedbid/internal/restfulpayload"
	"github.com/CamberLoid/sealedbid/internal/rsa"
	"github.com/CamberLoid/sealedbid/internal/signature"
)

// SealedBid 是一个已封装、已签名的出价
// Value 只保存在本地，除非 Disclose 为 true 才随出价发送。
type SealedBid struct {
	Value      *big.Int
	Ciphertext *big.Int
	Hash       *big.Int
	R, S       *big.Int
	Disclose   bool
}

// SealBid 用服务端 RSA 公钥加密出价，并对 "y=<密文>" 签名
func (p *Participant) SealBid(value *big.Int) (*SealedBid, error) {
	if err := p.checkSignAvailability(); err != nil {
		return nil, err
	}
	c, err := rsa.Encrypt(value, p.Server.RSA)
	if err != nil {
		return nil, err
	}
	return p.signCiphertext(value, c)
}

func (p *Participant) signCiphertext(value, c *big.Int) (*SealedBid, error) {
	h := signature.HashToQ(bid.Message(c), p.Server.Params.Q)
	r, s, err := signature.SignHash(h, p.Server.Params, p.Keys.Signature.X, p.src)
	if err != nil {
		return nil, err
	}
	return &SealedBid{Value: value, Ciphertext: c, Hash: h, R: r, S: s}, nil
}

// ForgeBid 对 signedValue 的密文签名，却提交 sentValue 的密文
// 服务端应以 HashMismatch 拒绝，用于演示"签一个、发另一个"的攻击。
func (p *Participant) ForgeBid(signedValue, sentValue *big.Int) (*SealedBid, error) {
	signed, err := p.SealBid(signedValue)
	if err != nil {
		return nil, err
	}
	sent, err := rsa.Encrypt(sentValue, p.Server.RSA)
	if err != nil {
		return nil, err
	}
	signed.Value, signed.Ciphertext = sentValue, sent
	return signed, nil
}

// Request 返回出价消息
func (sb *SealedBid) Request(id string) *restfulpayload.BidReq {
	req := &restfulpayload.BidReq{
		ID: id,
		Y:  restfulpayload.NewBigInt(sb.Ciphertext),
		H:  restfulpayload.NewBigInt(sb.Hash),
		R:  restfulpayload.NewBigInt(sb.R),
		S:  restfulpayload.NewBigInt(sb.S),
	}
	if sb.Disclose {
		req.Value = restfulpayload.NewBigInt(sb.Value)
	}
	return req
}
