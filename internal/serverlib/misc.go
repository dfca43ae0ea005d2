package serverlib

import (
	"github.com/CamberLoid/sealedbid/internal/misc"
	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
)

// Recover 运行 f，把其中的 panic 转为错误
func Recover(f func() error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			jww.ERROR.Printf("recovered panic: %v", p)
			err = errors.Errorf("internal error: %v", p)
		}
	}()
	return f()
}

// logRejection 记录一次被拒绝的请求；非拒绝类错误记为 ERROR
func logRejection(op, id string, err error) {
	if misc.KindName(err) != "" {
		jww.WARN.Printf("%s rejected for %q: %v", op, id, err)
		return
	}
	jww.ERROR.Printf("%s failed for %q: %v", op, id, err)
}
