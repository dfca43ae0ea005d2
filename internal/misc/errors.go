// 包 misc 包含各模块共用的错误类型
package misc

import (
	"fmt"

	"github.com/pkg/errors"
)

// --- 错误种类 --- //

var (
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrNoInverse        = errors.New("no modular inverse")
	ErrProtocolOrder    = errors.New("protocol order violation")
	ErrHashMismatch     = errors.New("hash mismatch")
	ErrBadSignature     = errors.New("bad signature")
	ErrNotAuthorized    = errors.New("not authorized")
	ErrProofRejected    = errors.New("zero-knowledge proof rejected")
)

var kinds = map[string]error{
	"InvalidParameter":       ErrInvalidParameter,
	"NoInverse":              ErrNoInverse,
	"ProtocolOrderViolation": ErrProtocolOrder,
	"HashMismatch":           ErrHashMismatch,
	"BadSignature":           ErrBadSignature,
	"NotAuthorized":          ErrNotAuthorized,
	"ProofRejected":          ErrProofRejected,
}

// KindName 返回错误种类的名称，未知种类返回空字符串
func KindName(err error) string {
	for name, kind := range kinds {
		if errors.Is(err, kind) {
			return name
		}
	}
	return ""
}

// KindByName 是 KindName 的逆操作
func KindByName(name string) (error, bool) {
	kind, ok := kinds[name]
	return kind, ok
}

// --- Rejection 部分 --- //

// Rejection 表示协议层面的拒绝，包含错误种类和可读原因
type Rejection struct {
	Kind   error
	Reason string
}

func Reject(kind error, format string, args ...any) *Rejection {
	return &Rejection{Kind: kind, Reason: fmt.Sprintf(format, args...)}
}

func (r *Rejection) Error() string {
	if r.Reason == "" {
		return r.Kind.Error()
	}
	return r.Kind.Error() + ": " + r.Reason
}

func (r *Rejection) Unwrap() error {
	return r.Kind
}

// ReasonOf 取出拒绝原因；非 Rejection 的错误返回 err.Error()
func ReasonOf(err error) string {
	var rej *Rejection
	if errors.As(err, &rej) {
		return rej.Reason
	}
	return err.Error()
}
