// 包 bid 包含封装出价、出价日志与胜者判定
package bid

import (
	"math/big"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Bid 是一次被接受的出价
// Ciphertext = RSA(value)，Hash = Hash94("y=" + Ciphertext) mod q，(R, S) 是对 Hash 的签名。
// Value 只在开标解密后才有值；Claimed 是出价方自报的明文，仅供审计。
type Bid struct {
	UUID          uuid.UUID `json:"uuid"`
	ParticipantID string    `json:"id"`
	Value         *big.Int  `json:"value,omitempty"`
	Claimed       *big.Int  `json:"claimed,omitempty"`
	Ciphertext    *big.Int  `json:"y"`
	Hash          *big.Int  `json:"h"`
	R             *big.Int  `json:"r"`
	S             *big.Int  `json:"s"`
	TimeStamp     int64     `json:"timestamp"` //unix时间戳
}

// New 生成带新 UUID 和当前时间戳的出价
func New(participantID string, ciphertext, h, r, s *big.Int) *Bid {
	return &Bid{
		UUID:          uuid.New(),
		ParticipantID: participantID,
		Ciphertext:    ciphertext,
		Hash:          h,
		R:             r,
		S:             s,
		TimeStamp:     time.Now().Unix(),
	}
}

// Message 返回被签名的消息 "y=<十进制密文>"
func Message(ciphertext *big.Int) []byte {
	return []byte("y=" + ciphertext.String())
}

// Clone 复制出价；big.Int 字段只读，共享即可
func (b *Bid) Clone() *Bid {
	c := *b
	return &c
}

// --- 出价日志 --- //

// Log 是只追加的出价日志
type Log struct {
	mu      sync.Mutex
	entries []*Bid
}

func (l *Log) Append(b *Bid) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, b)
}

// All 按接受顺序返回全部出价的副本
func (l *Log) All() []*Bid {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*Bid, len(l.entries))
	for i, b := range l.entries {
		out[i] = b.Clone()
	}
	return out
}

// Latest 返回每个参与方的最后一次出价，顺序为参与方第一次出价的顺序
func (l *Log) Latest() []*Bid {
	bids, _ := l.LatestAt()
	return bids
}

// LatestAt 同 Latest，并返回快照对应的日志长度
func (l *Log) LatestAt() ([]*Bid, int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	index := make(map[string]int)
	var out []*Bid
	for _, b := range l.entries {
		if i, ok := index[b.ParticipantID]; ok {
			out[i] = b.Clone()
			continue
		}
		index[b.ParticipantID] = len(out)
		out = append(out, b.Clone())
	}
	return out, len(l.entries)
}

func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Reset 清空日志
func (l *Log) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = nil
}
