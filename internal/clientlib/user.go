package clientlib

import (
	"math/big"

	"github.com/CamberLoid/sealedbid/internal/bignum"
	"github.com/CamberLoid/sealedbid/internal/ffs"
	"github.com/CamberLoid/sealedbid/internal/key"
	"github.com/CamberLoid/sealedbid/internal/misc"
	"github.com/CamberLoid/sealedbid/internal/params"
	"github.com/CamberLoid/sealedbid/internal/restfulpayload"
	"github.com/CamberLoid/sealedbid/internal/signature"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// ServerInfo 是从 Welcome 中解析出的会话参数
type ServerInfo struct {
	SessionID   uuid.UUID
	Params      *params.DomainParams
	RSA         *key.RSAPublicKey
	ZKV         *big.Int
	Rounds      int
	AuthOpen    bool
	BiddingOpen bool
}

// ParseWelcome 校验并解析 Welcome
func ParseWelcome(w *restfulpayload.Welcome) (*ServerInfo, error) {
	if err := restfulpayload.Validate(w); err != nil {
		return nil, err
	}
	dp := &params.DomainParams{P: w.P.Int(), Q: w.Q.Int(), A: w.A.Int()}
	if err := dp.Validate(); err != nil {
		return nil, errors.Wrap(err, "server domain parameters")
	}
	n := w.N.Int()
	if !bignum.InOpenRange(w.V.Int(), n) {
		return nil, misc.Reject(misc.ErrInvalidParameter, "server zk key out of range (0, n)")
	}
	return &ServerInfo{
		SessionID:   w.SessionID,
		Params:      dp,
		RSA:         &key.RSAPublicKey{N: n, E: w.E.Int()},
		ZKV:         w.V.Int(),
		Rounds:      w.Rounds,
		AuthOpen:    w.AuthOpen,
		BiddingOpen: w.BiddingOpen,
	}, nil
}

// Participant 是参与方本地持有的身份：签名密钥和服务端模数上的 ZK 密钥
type Participant struct {
	ID     string
	Keys   key.KeyChain
	Server *ServerInfo

	src *bignum.EntropySource
}

// NewParticipant 按会话参数生成参与方密钥
func NewParticipant(id string, server *ServerInfo, src *bignum.EntropySource) (*Participant, error) {
	sk, err := signature.GenerateKey(server.Params, src)
	if err != nil {
		return nil, errors.Wrap(err, "signature key")
	}
	zk, err := ffs.GenerateKey(server.RSA.N, src)
	if err != nil {
		return nil, errors.Wrap(err, "zk key")
	}
	return &Participant{
		ID:     id,
		Keys:   key.KeyChain{Signature: sk, ZK: zk},
		Server: server,
		src:    src,
	}, nil
}

// RegistrationRequest 返回注册消息，只包含公钥
func (p *Participant) RegistrationRequest() *restfulpayload.RegisterReq {
	return &restfulpayload.RegisterReq{
		ID: p.ID,
		Y:  restfulpayload.NewBigInt(p.Keys.Signature.Y),
		V:  restfulpayload.NewBigInt(p.Keys.ZK.V),
	}
}

// checkSignAvailability 检查是否可以签名
func (p *Participant) checkSignAvailability() error {
	if p.Keys.Signature == nil || p.Keys.Signature.X == nil {
		return errors.New("no signature private key")
	}
	return nil
}
