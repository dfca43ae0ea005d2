package bignum

import (
	"math/big"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/CamberLoid/sealedbid/internal/misc"
	"github.com/pkg/errors"
	"golang.org/x/crypto/blake2b"
)

// --- LCG 参数 --- //
// state_{n+1} = (a * state_n + c) mod 2^256

const (
	lcgAHex = "5851F42D4C957F2D14057B7EF767814F26C34F5DF7C2340F1BBCDCB0F3E5A5F1"
	lcgCHex = "14057B7EF767814F5851F42D4C957F2D1F123BB5A1B3C9D7E3F4A5B6C7D8E9F"

	// SeedMixRounds 是熵混合的轮数
	SeedMixRounds = 4
)

var (
	lcgA, lcgC = mustOdd(lcgAHex), mustOdd(lcgCHex)
	lcgMask    = new(big.Int).Sub(new(big.Int).Lsh(one, 256), one)

	processStart = time.Now()
	seedCounter  atomic.Uint64
)

func mustOdd(h string) *big.Int {
	v, ok := new(big.Int).SetString(h, 16)
	if !ok {
		panic("bignum: bad LCG constant " + h)
	}
	return v.SetBit(v, 0, 1)
}

// EntropySource 是 256 位线性同余发生器，所有随机数均由它产生
// 并发安全；不是密码学安全的随机源。
type EntropySource struct {
	mu    sync.Mutex
	state *big.Int
}

// NewEntropySource 以进程信息和时间混合得到的种子创建熵源
func NewEntropySource() *EntropySource {
	return NewSeededEntropySource(MixEntropy(gatherEntropy(), SeedMixRounds))
}

// NewSeededEntropySource 以给定种子（大端）创建熵源，用于可复现的测试
func NewSeededEntropySource(seed []byte) *EntropySource {
	s := new(big.Int).SetBytes(seed)
	return &EntropySource{state: s.And(s, lcgMask)}
}

// gatherEntropy 收集墙上时间、单调时间、pid、ppid、uid 与递增计数器
func gatherEntropy() []byte {
	parts := []string{
		strconv.FormatInt(time.Now().UnixNano(), 10),
		strconv.FormatInt(int64(time.Since(processStart)), 10),
		strconv.Itoa(os.Getpid()),
		strconv.Itoa(os.Getppid()),
		strconv.Itoa(os.Getuid()),
		strconv.FormatUint(seedCounter.Add(1), 10),
	}
	return []byte(strings.Join(parts, "|"))
}

// MixEntropy: acc = H(acc || r(2 字节大端) || reverse(acc))，共 rounds 轮
func MixEntropy(entropy []byte, rounds int) []byte {
	acc := entropy
	for r := 0; r < rounds; r++ {
		buf := make([]byte, 0, 2*len(acc)+2)
		buf = append(buf, acc...)
		buf = append(buf, byte(r>>8), byte(r))
		for i := len(acc) - 1; i >= 0; i-- {
			buf = append(buf, acc[i])
		}
		sum := blake2b.Sum256(buf)
		acc = sum[:]
	}
	return acc
}

// Next 推进一步并返回新的 256 位状态
func (e *EntropySource) Next() *big.Int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.next()
}

func (e *EntropySource) next() *big.Int {
	e.state.Mul(e.state, lcgA)
	e.state.Add(e.state, lcgC)
	e.state.And(e.state, lcgMask)
	return new(big.Int).Set(e.state)
}

// Bits 返回 n 位随机整数，最高位不强制置 1
// 连续取 256 位输出拼接后截断到低 n 位。
func (e *EntropySource) Bits(n int) (*big.Int, error) {
	if n <= 0 {
		return nil, errors.Wrapf(misc.ErrInvalidParameter, "bits must be > 0, got %d", n)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.bits(n), nil
}

func (e *EntropySource) bits(n int) *big.Int {
	v := new(big.Int)
	for remaining := n; remaining > 0; remaining -= 256 {
		v.Lsh(v, 256)
		v.Or(v, e.next())
	}
	mask := new(big.Int).Sub(new(big.Int).Lsh(one, uint(n)), one)
	return v.And(v, mask)
}

// BitsTop 返回恰好 n 位的随机整数（最高位置 1）
func (e *EntropySource) BitsTop(n int) (*big.Int, error) {
	v, err := e.Bits(n)
	if err != nil {
		return nil, err
	}
	return v.SetBit(v, n-1, 1), nil
}

// Below 用拒绝采样返回 [0, high) 中的均匀随机数
func (e *EntropySource) Below(high *big.Int) (*big.Int, error) {
	if high.Sign() <= 0 {
		return nil, errors.Wrapf(misc.ErrInvalidParameter, "upper bound must be positive, got %s", high)
	}
	n := high.BitLen()
	e.mu.Lock()
	defer e.mu.Unlock()
	for {
		if r := e.bits(n); r.Cmp(high) < 0 {
			return r, nil
		}
	}
}

// Range 返回 [lo, hi] 中的均匀随机数（两端均包含）
func (e *EntropySource) Range(lo, hi *big.Int) (*big.Int, error) {
	if hi.Cmp(lo) < 0 {
		return nil, errors.Wrapf(misc.ErrInvalidParameter, "empty range [%s, %s]", lo, hi)
	}
	width := new(big.Int).Sub(hi, lo)
	r, err := e.Below(width.Add(width, one))
	if err != nil {
		return nil, err
	}
	return r.Add(r, lo), nil
}

// RangeInt64 是 Range 的 int64 版本
func (e *EntropySource) RangeInt64(lo, hi int64) (int64, error) {
	r, err := e.Range(big.NewInt(lo), big.NewInt(hi))
	if err != nil {
		return 0, err
	}
	return r.Int64(), nil
}

// Read 以 LCG 输出填充 p，使熵源可以作为 io.Reader 使用
func (e *EntropySource) Read(p []byte) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	var block [32]byte
	for off := 0; off < len(p); off += len(block) {
		e.next().FillBytes(block[:])
		copy(p[off:], block[:])
	}
	return len(p), nil
}
