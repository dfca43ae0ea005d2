package bid

import "math/big"

// Published 是公开的出价视图，不含明文
type Published struct {
	ParticipantID string
	Ciphertext    *big.Int
	R             *big.Int
	S             *big.Int
}

// Result 是开标后的一行结果；Value 为 nil 表示该出价无法解密
type Result struct {
	ParticipantID string
	Value         *big.Int
	Winner        bool
}

// Outcome 是开标结果，没有有效出价时 WinnerID 为空
type Outcome struct {
	Results  []Result
	WinnerID string
}

// Publish 返回出价的公开视图
func Publish(bids []*Bid) []Published {
	out := make([]Published, len(bids))
	for i, b := range bids {
		out[i] = Published{ParticipantID: b.ParticipantID, Ciphertext: b.Ciphertext, R: b.R, S: b.S}
	}
	return out
}

// Decide 解密每个出价并选出最大值
// 平局时由排在前面的参与方获胜，bids 应按 Log.Latest 的顺序给出。
func Decide(bids []*Bid, decrypt func(*big.Int) (*big.Int, error)) *Outcome {
	out := &Outcome{Results: make([]Result, len(bids))}
	best := -1
	for i, b := range bids {
		out.Results[i].ParticipantID = b.ParticipantID
		v, err := decrypt(b.Ciphertext)
		if err != nil {
			continue
		}
		b.Value = v
		out.Results[i].Value = v
		if best < 0 || v.Cmp(out.Results[best].Value) > 0 {
			best = i
		}
	}
	if best >= 0 {
		out.Results[best].Winner = true
		out.WinnerID = out.Results[best].ParticipantID
	}
	return out
}

// Clone 复制结果列表
func (o *Outcome) Clone() *Outcome {
	c := &Outcome{WinnerID: o.WinnerID, Results: make([]Result, len(o.Results))}
	copy(c.Results, o.Results)
	return c
}
