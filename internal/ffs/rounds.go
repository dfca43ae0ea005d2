package ffs

import (
	"io"
	"math/big"

	"github.com/CamberLoid/sealedbid/internal/bignum"
	"github.com/CamberLoid/sealedbid/internal/misc"
)

// State 是单个方向上当前轮次所处的阶段
type State int

const (
	Idle State = iota
	CommitSent
	ChallengeReceived
	ResponseSent
	RoundAccepted
	Rejected
	Accepted
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case CommitSent:
		return "CommitSent"
	case ChallengeReceived:
		return "ChallengeReceived"
	case ResponseSent:
		return "ResponseSent"
	case RoundAccepted:
		return "RoundAccepted"
	case Rejected:
		return "Rejected"
	case Accepted:
		return "Accepted"
	}
	return "Unknown"
}

// ValidRounds 判断 k ∈ [1, MaxRounds]
func ValidRounds(k int) bool {
	return k > 0 && k <= MaxRounds
}

// checkOrder 校验下一轮的编号；round == 1 时由调用方先行重置
func checkOrder(round, done, total int, pending bool) error {
	if pending {
		return misc.Reject(misc.ErrProtocolOrder, "round %d is still pending", done+1)
	}
	if round != done+1 {
		return misc.Reject(misc.ErrProtocolOrder, "expected round %d, got %d", done+1, round)
	}
	if round > total {
		return misc.Reject(misc.ErrProtocolOrder, "round %d exceeds %d rounds", round, total)
	}
	return nil
}

// --- Prover 部分 --- //

// Prover 是证明方一侧的轮次状态机，不做并发保护
type Prover struct {
	n, s   *big.Int
	rounds int
	src    *bignum.EntropySource

	state State
	done  int
	r     *big.Int
}

// NewProver 以模数 n 和秘密 s 创建证明方
func NewProver(n, s *big.Int, rounds int, src *bignum.EntropySource) *Prover {
	return &Prover{n: n, s: s, rounds: rounds, src: src}
}

func (p *Prover) pending() bool {
	return p.state == CommitSent || p.state == ChallengeReceived
}

// Reset 丢弃本方向全部进度
func (p *Prover) Reset() {
	p.state, p.done, p.r = Idle, 0, nil
}

// Commit 开始第 round 轮，返回承诺 z；round == 1 时重新开始
func (p *Prover) Commit(round int) (*big.Int, error) {
	if round == 1 {
		p.Reset()
	}
	if err := checkOrder(round, p.done, p.rounds, p.pending()); err != nil {
		return nil, err
	}
	r, z, err := Commit(p.n, p.src)
	if err != nil {
		return nil, err
	}
	p.r, p.state = r, CommitSent
	return z, nil
}

// Respond 回应第 round 轮的挑战 b
func (p *Prover) Respond(round int, b uint) (*big.Int, error) {
	if p.state != CommitSent {
		return nil, misc.Reject(misc.ErrProtocolOrder, "no commitment outstanding")
	}
	if round != p.done+1 {
		return nil, misc.Reject(misc.ErrProtocolOrder, "challenge for round %d, pending round is %d", round, p.done+1)
	}
	if b > 1 {
		return nil, misc.Reject(misc.ErrInvalidParameter, "challenge must be 0 or 1, got %d", b)
	}
	p.state = ChallengeReceived
	resp, err := Respond(p.r, p.s, b, p.n)
	if err != nil {
		return nil, err
	}
	p.r, p.state = nil, ResponseSent
	p.done++
	return resp, nil
}

// Done 返回已回应的轮数
func (p *Prover) Done() int { return p.done }

// Finished 表示全部 k 轮都已回应
func (p *Prover) Finished() bool { return p.done >= p.rounds }

func (p *Prover) State() State { return p.state }

func (p *Prover) Rounds() int { return p.rounds }

// --- Verifier 部分 --- //

// Verifier 是验证方一侧的轮次状态机，不做并发保护
type Verifier struct {
	n, v       *big.Int
	rounds     int
	challenger io.Reader

	state State
	done  int
	z     *big.Int
	b     uint
}

// NewVerifier 以证明方公钥 v 创建验证方，challenger 为挑战比特来源
func NewVerifier(n, v *big.Int, rounds int, challenger io.Reader) *Verifier {
	return &Verifier{n: n, v: v, rounds: rounds, challenger: challenger}
}

func (vf *Verifier) pending() bool {
	return vf.state == CommitSent || vf.state == ChallengeReceived
}

func (vf *Verifier) Reset() {
	vf.state, vf.done, vf.z = Idle, 0, nil
}

// Challenge 接收第 round 轮的承诺 z 并返回挑战比特
func (vf *Verifier) Challenge(round int, z *big.Int) (uint, error) {
	if round == 1 {
		vf.Reset()
	}
	if err := checkOrder(round, vf.done, vf.rounds, vf.pending()); err != nil {
		return 0, err
	}
	if !bignum.InOpenRange(z, vf.n) {
		return 0, misc.Reject(misc.ErrInvalidParameter, "commitment out of range (0, n)")
	}
	vf.z, vf.state = z, CommitSent

	b, err := Challenge(vf.challenger)
	if err != nil {
		vf.Reset()
		return 0, err
	}
	vf.b, vf.state = b, ChallengeReceived
	return b, nil
}

// Check 检查第 round 轮的回应；任何失败都会清空本方向进度
// accepted 在第 k 轮通过后为 true。
func (vf *Verifier) Check(round int, resp *big.Int) (accepted bool, err error) {
	if vf.state != ChallengeReceived {
		return false, misc.Reject(misc.ErrProtocolOrder, "no challenge outstanding")
	}
	if round != vf.done+1 {
		return false, misc.Reject(misc.ErrProtocolOrder, "response for round %d, pending round is %d", round, vf.done+1)
	}
	vf.state = ResponseSent

	if !bignum.InOpenRange(resp, vf.n) {
		vf.reject()
		return false, misc.Reject(misc.ErrInvalidParameter, "response out of range (0, n)")
	}
	if !Verify(vf.z, resp, vf.b, vf.v, vf.n) {
		vf.reject()
		return false, misc.Reject(misc.ErrProofRejected, "round %d failed", round)
	}

	vf.done++
	vf.z = nil
	if vf.done >= vf.rounds {
		vf.state = Accepted
		return true, nil
	}
	vf.state = RoundAccepted
	return false, nil
}

func (vf *Verifier) reject() {
	vf.done, vf.z, vf.state = 0, nil, Rejected
}

// Accepted 仅在连续通过 k 轮后为 true
func (vf *Verifier) Accepted() bool { return vf.state == Accepted }

func (vf *Verifier) Done() int { return vf.done }

func (vf *Verifier) State() State { return vf.state }

func (vf *Verifier) Rounds() int { return vf.rounds }
