// 包 participant 包含服务端保存的拍卖参与方记录
package participant

import (
	"math/big"
	"sync"
	"time"

	"github.com/CamberLoid/sealedbid/internal/ffs"
)

// State 是参与方在会话中的阶段
type State int

const (
	Unregistered State = iota
	KeysRegistered
	ClientProved
	MutuallyAuthenticated
	CanBid
)

func (s State) String() string {
	switch s {
	case Unregistered:
		return "Unregistered"
	case KeysRegistered:
		return "KeysRegistered"
	case ClientProved:
		return "ClientProved"
	case MutuallyAuthenticated:
		return "MutuallyAuthenticated"
	case CanBid:
		return "CanBid"
	}
	return "Unknown"
}

// Record 是一个参与方的服务端状态
// 同一参与方的请求依次处理：调用方须持有 Lock。
type Record struct {
	sync.Mutex

	ID           string
	SignaturePub *big.Int // y
	ZKPub        *big.Int // v
	RegisteredAt time.Time

	// ClientAuth: 参与方向服务端证明；ServerAuth: 服务端向参与方证明
	ClientAuth *ffs.Verifier
	ServerAuth *ffs.Prover

	Registered      bool
	Authenticated   bool
	MutualConfirmed bool
}

// New 返回一个尚未注册密钥的参与方
func New(id string) *Record {
	return &Record{ID: id}
}

// Register 保存公钥并清空所有认证进度
func (r *Record) Register(y, v *big.Int, clientAuth *ffs.Verifier, serverAuth *ffs.Prover) {
	r.SignaturePub = y
	r.ZKPub = v
	r.RegisteredAt = time.Now()
	r.ClientAuth = clientAuth
	r.ServerAuth = serverAuth
	r.Registered = true
	r.Revoke()
}

// Revoke 撤销认证状态并丢弃服务端证明的进度，密钥保留
func (r *Record) Revoke() {
	r.Authenticated = false
	r.MutualConfirmed = false
	if r.ServerAuth != nil {
		r.ServerAuth.Reset()
	}
}

// State 根据标志位计算阶段；CanBid 还取决于出价窗口
func (r *Record) State(biddingOpen bool) State {
	switch {
	case !r.Registered:
		return Unregistered
	case !r.Authenticated:
		return KeysRegistered
	case !r.MutualConfirmed:
		return ClientProved
	case !biddingOpen:
		return MutuallyAuthenticated
	}
	return CanBid
}
