// 包 restfulpayload 包含客户端与服务端之间的消息结构
// 所有大整数都以十进制字符串编码。
package restfulpayload

import (
	"encoding/json"
	"io"
	"math/big"

	"github.com/CamberLoid/sealedbid/internal/misc"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const (
	StatusOK     = "OK"
	StatusFailed = "failed"
)

// --- 大整数编码 --- //

// BigInt 在 JSON 中编码为十进制字符串
type BigInt big.Int

// NewBigInt 包装 x，不复制；x 为 nil 时返回 nil
func NewBigInt(x *big.Int) *BigInt {
	return (*BigInt)(x)
}

// Int 取出 *big.Int，接收者为 nil 时返回 nil
func (b *BigInt) Int() *big.Int {
	return (*big.Int)(b)
}

func (b *BigInt) MarshalJSON() ([]byte, error) {
	return json.Marshal((*big.Int)(b).String())
}

func (b *BigInt) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return errors.Wrap(misc.ErrInvalidParameter, "big integer must be a decimal string")
	}
	if _, ok := (*big.Int)(b).SetString(s, 10); !ok {
		return errors.Wrapf(misc.ErrInvalidParameter, "%q is not a decimal integer", s)
	}
	return nil
}

// --- 会话信息 --- //

// Welcome 是会话公开的参数：RSA 公钥、服务端 ZK 公钥、签名域参数和轮数
// 服务端的 ZK 身份与 RSA 共用模数 n。
type Welcome struct {
	Status      string    `json:"status"`
	SessionID   uuid.UUID `json:"session"`
	Message     string    `json:"message,omitempty"`
	N           *BigInt   `json:"n" validate:"required"`
	E           *BigInt   `json:"e" validate:"required"`
	V           *BigInt   `json:"v" validate:"required"`
	P           *BigInt   `json:"p" validate:"required"`
	Q           *BigInt   `json:"q" validate:"required"`
	A           *BigInt   `json:"a" validate:"required"`
	Rounds      int       `json:"rounds" validate:"min=1,max=1024"`
	AllowedIDs  []string  `json:"allowed,omitempty"`
	AuthOpen    bool      `json:"authOpen"`
	BiddingOpen bool      `json:"biddingOpen"`
}

// BiddingStatus 在窗口开关时广播
type BiddingStatus struct {
	Status      string `json:"status"`
	AuthOpen    bool   `json:"authOpen"`
	BiddingOpen bool   `json:"biddingOpen"`
}

// Version 是 /version 的回复
type Version struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// Ack 是无其他内容的成功回复
type Ack struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// Failure 是失败回复，Kind 为错误种类名称
type Failure struct {
	Status string `json:"status"`
	Err    string `json:"err"`
	Kind   string `json:"kind,omitempty"`
}

// --- 注册 --- //

type RegisterReq struct {
	ID string  `json:"id" validate:"required,max=128"`
	Y  *BigInt `json:"y" validate:"required"`
	V  *BigInt `json:"v" validate:"required"`
}

// StateReq 查询参与方当前阶段
type StateReq struct {
	ID string `json:"id" validate:"required,max=128"`
}

type StateResp struct {
	Status string `json:"status"`
	ID     string `json:"id"`
	State  string `json:"state"`
}

// --- 客户端向服务端证明 --- //

// AuthCommitReq 携带第 Round 轮的承诺 z
type AuthCommitReq struct {
	ID     string  `json:"id" validate:"required,max=128"`
	Round  int     `json:"round" validate:"min=1"`
	Rounds int     `json:"rounds" validate:"min=1"`
	Z      *BigInt `json:"z" validate:"required"`
}

type AuthChallenge struct {
	Status string `json:"status"`
	Round  int    `json:"round"`
	B      uint   `json:"b" validate:"max=1"`
}

type AuthResponseReq struct {
	ID    string  `json:"id" validate:"required,max=128"`
	Round int     `json:"round" validate:"min=1"`
	Resp  *BigInt `json:"resp" validate:"required"`
}

// AuthResult 表示一轮通过；Accepted 仅在最后一轮通过后为 true
type AuthResult struct {
	Status   string `json:"status"`
	Round    int    `json:"round"`
	Accepted bool   `json:"accepted"`
	Reason   string `json:"reason,omitempty"`
}

// --- 服务端向客户端证明 --- //

type ServerAuthReq struct {
	ID     string `json:"id" validate:"required,max=128"`
	Round  int    `json:"round" validate:"min=1"`
	Rounds int    `json:"rounds" validate:"min=1"`
}

type ServerAuthCommit struct {
	Status string  `json:"status"`
	Round  int     `json:"round"`
	Z      *BigInt `json:"z" validate:"required"`
}

type ServerAuthChallengeReq struct {
	ID    string `json:"id" validate:"required,max=128"`
	Round int    `json:"round" validate:"min=1"`
	B     uint   `json:"b" validate:"max=1"`
}

type ServerAuthResponse struct {
	Status string  `json:"status"`
	Round  int     `json:"round"`
	Resp   *BigInt `json:"resp" validate:"required"`
}

// MutualConfirmReq 是客户端对服务端证明的结论
type MutualConfirmReq struct {
	ID     string `json:"id" validate:"required,max=128"`
	OK     bool   `json:"ok"`
	Reason string `json:"reason,omitempty"`
}

// --- 出价 --- //

// BidReq 中 Value 仅供审计，服务端不信任
type BidReq struct {
	ID    string  `json:"id" validate:"required,max=128"`
	Value *BigInt `json:"value,omitempty"`
	Y     *BigInt `json:"y" validate:"required"`
	H     *BigInt `json:"h" validate:"required"`
	R     *BigInt `json:"r" validate:"required"`
	S     *BigInt `json:"s" validate:"required"`
}

type BidResult struct {
	Status   string    `json:"status"`
	Accepted bool      `json:"accepted"`
	UUID     uuid.UUID `json:"uuid"`
}

type PublishedBid struct {
	ID string  `json:"id"`
	Y  *BigInt `json:"y"`
	R  *BigInt `json:"r"`
	S  *BigInt `json:"s"`
}

type BidsPublished struct {
	Status string         `json:"status"`
	Bids   []PublishedBid `json:"bids"`
}

// ResultEntry 的 Value 为空表示该出价无法解密
type ResultEntry struct {
	ID     string  `json:"id"`
	Value  *BigInt `json:"value,omitempty"`
	Winner bool    `json:"winner"`
}

type ResultsPublished struct {
	Status  string        `json:"status"`
	Results []ResultEntry `json:"results"`
	Winner  string        `json:"winner,omitempty"`
}

// --- 管理 --- //

// WindowReq 开关认证/出价窗口，字段为空表示不修改
type WindowReq struct {
	AuthOpen    *bool `json:"authOpen,omitempty"`
	BiddingOpen *bool `json:"biddingOpen,omitempty"`
}

type AllowedIDsReq struct {
	IDs []string `json:"ids" validate:"dive,required,max=128"`
}

// --- 校验 --- //

var validate = validator.New()

// Validate 校验结构体标签，失败时返回 ErrInvalidParameter 种类的拒绝
func Validate(v any) error {
	if err := validate.Struct(v); err != nil {
		return misc.Reject(misc.ErrInvalidParameter, "%s", err.Error())
	}
	return nil
}

// Decode 读取一个 JSON 消息并校验
func Decode(r io.Reader, v any) error {
	if err := json.NewDecoder(r).Decode(v); err != nil {
		return misc.Reject(misc.ErrInvalidParameter, "malformed message: %s", err.Error())
	}
	return Validate(v)
}

// --- 路径 --- //

const (
	VersionEndpoint           = "/version"
	WelcomeEndpoint           = "/session/welcome"
	RegisterEndpoint          = "/register"
	StateEndpoint             = "/state"
	AuthCommitEndpoint        = "/auth/commit"
	AuthRespondEndpoint       = "/auth/respond"
	ServerAuthCommitEndpoint  = "/auth/server/commit"
	ServerAuthRespondEndpoint = "/auth/server/respond"
	ConfirmEndpoint           = "/auth/confirm"
	BidEndpoint               = "/bid/submit"
	BidsEndpoint              = "/bids"
	ResultsEndpoint           = "/results"

	AdminWindowsEndpoint  = "/admin/windows"
	AdminAllowedEndpoint  = "/admin/allowed"
	AdminDecideEndpoint   = "/admin/decide"
	AdminShutdownEndpoint = "/admin/shutdown"
)
