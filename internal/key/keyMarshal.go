package key

import (
	"math/big"

	"github.com/CamberLoid/sealedbid/internal/misc"
	"github.com/pkg/errors"
)

// MarshalBigInt 返回十进制字符串，nil 编码为空字符串
func MarshalBigInt(x *big.Int) string {
	if x == nil {
		return ""
	}
	return x.String()
}

// UnmarshalBigInt 解析十进制字符串，name 仅用于错误信息
func UnmarshalBigInt(s, name string) (*big.Int, error) {
	x, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, errors.Wrapf(misc.ErrInvalidParameter, "failed to convert %s value %q to big.Int", name, s)
	}
	return x, nil
}
