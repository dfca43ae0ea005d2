package serverlib

import (
	"math/big"

	"github.com/CamberLoid/sealedbid/internal/bignum"
	"github.com/CamberLoid/sealedbid/internal/ffs"
	"github.com/CamberLoid/sealedbid/internal/misc"
	"github.com/CamberLoid/sealedbid/internal/participant"
	jww "github.com/spf13/jwalterweatherman"
)

// --- 注册部分 ---

// Register 登记参与方的签名公钥 y 和 ZK 公钥 v
// 重复注册会覆盖公钥并清空认证进度。
func (s *Session) Register(id string, y, v *big.Int) error {
	err := s.register(id, y, v)
	if err != nil {
		logRejection("register", id, err)
	}
	return err
}

func (s *Session) register(id string, y, v *big.Int) error {
	if id == "" {
		return misc.Reject(misc.ErrInvalidParameter, "empty participant id")
	}
	if !bignum.InOpenRange(y, s.keys.Params.P) {
		return misc.Reject(misc.ErrInvalidParameter, "signature key out of range (0, p)")
	}
	n := s.keys.RSA.N
	if !bignum.InOpenRange(v, n) || !bignum.Coprime(v, n) {
		return misc.Reject(misc.ErrInvalidParameter, "zk key must be in (0, n) and coprime to n")
	}

	challenger, err := ffs.NewChallenger()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return misc.Reject(misc.ErrNotAuthorized, "session is closed")
	}
	if s.allowed != nil && !s.allowed[id] {
		return misc.Reject(misc.ErrNotAuthorized, "participant %q is not on the allowed list", id)
	}

	rec, ok := s.participants[id]
	if !ok {
		rec = participant.New(id)
		s.participants[id] = rec
	}
	rec.Lock()
	defer rec.Unlock()
	rec.Register(y, v,
		ffs.NewVerifier(n, v, s.rounds, challenger),
		ffs.NewProver(n, s.keys.ZK.S, s.rounds, s.src),
	)
	s.persist(rec)

	jww.INFO.Printf("Participant %q registered", id)
	s.obs.Notify(Event{Kind: EventRegistered, ParticipantID: id})
	return nil
}

// checkAuth 校验认证窗口和轮数，调用方持有读锁
func (s *Session) checkAuth(rounds int) error {
	if !s.authOpen {
		return misc.Reject(misc.ErrNotAuthorized, "authentication window is closed")
	}
	if rounds != s.rounds {
		return misc.Reject(misc.ErrInvalidParameter, "session runs %d rounds, got %d", s.rounds, rounds)
	}
	return nil
}

// --- 参与方向服务端证明 ---

// ClientAuthCommit 接收第 round 轮的承诺并返回挑战比特
// 从第 1 轮重新开始会撤销已有认证。
func (s *Session) ClientAuthCommit(id string, round, rounds int, z *big.Int) (uint, error) {
	var b uint
	err := s.withRecord(id, func(rec *participant.Record) (err error) {
		if err = s.checkAuth(rounds); err != nil {
			return err
		}
		if round == 1 && rec.Authenticated {
			s.revoke(rec, "client proof restarted")
		}
		b, err = rec.ClientAuth.Challenge(round, z)
		return err
	})
	if err != nil {
		logRejection("client commit", id, err)
	}
	return b, err
}

// ClientAuthRespond 检查第 round 轮的回应；最后一轮通过后 accepted 为 true
// 任何一轮失败都会清空该方向的进度。
func (s *Session) ClientAuthRespond(id string, round int, resp *big.Int) (accepted bool, err error) {
	err = s.withRecord(id, func(rec *participant.Record) error {
		if !s.authOpen {
			return misc.Reject(misc.ErrNotAuthorized, "authentication window is closed")
		}
		ok, err := rec.ClientAuth.Check(round, resp)
		if err != nil {
			if rec.Authenticated {
				s.revoke(rec, "client proof failed")
			}
			return err
		}
		if ok {
			rec.Authenticated = true
			s.persist(rec)
			jww.INFO.Printf("Participant %q proved its identity", id)
			s.obs.Notify(Event{Kind: EventClientProved, ParticipantID: id})
		}
		accepted = ok
		return nil
	})
	if err != nil {
		logRejection("client response", id, err)
	}
	return accepted, err
}

// --- 服务端向参与方证明 ---

// ServerAuthCommit 开始服务端证明的第 round 轮，返回承诺 z
// 参与方须先完成自己的证明；从第 1 轮重新开始会清空双向确认。
func (s *Session) ServerAuthCommit(id string, round, rounds int) (*big.Int, error) {
	var z *big.Int
	err := s.withRecord(id, func(rec *participant.Record) (err error) {
		if err = s.checkAuth(rounds); err != nil {
			return err
		}
		if !rec.Authenticated {
			return misc.Reject(misc.ErrProtocolOrder, "participant has not completed its own proof")
		}
		if round == 1 && rec.MutualConfirmed {
			rec.MutualConfirmed = false
			s.persist(rec)
		}
		z, err = rec.ServerAuth.Commit(round)
		return err
	})
	if err != nil {
		logRejection("server commit", id, err)
	}
	return z, err
}

// ServerAuthRespond 回应参与方对第 round 轮的挑战 b
func (s *Session) ServerAuthRespond(id string, round int, b uint) (*big.Int, error) {
	var resp *big.Int
	err := s.withRecord(id, func(rec *participant.Record) (err error) {
		if !s.authOpen {
			return misc.Reject(misc.ErrNotAuthorized, "authentication window is closed")
		}
		resp, err = rec.ServerAuth.Respond(round, b)
		return err
	})
	if err != nil {
		logRejection("server response", id, err)
	}
	return resp, err
}

// --- 双向确认 ---

// ConfirmMutual 记录参与方对服务端证明的结论
// 双向 k 轮未全部完成时确认属于越序；ok 为 false 时撤销认证。
func (s *Session) ConfirmMutual(id string, ok bool, reason string) error {
	err := s.withRecord(id, func(rec *participant.Record) error {
		if !ok {
			s.revoke(rec, "participant rejected server proof: "+reason)
			return nil
		}
		if !rec.Authenticated {
			return misc.Reject(misc.ErrProtocolOrder, "participant has not completed its own proof")
		}
		if !rec.ServerAuth.Finished() {
			return misc.Reject(misc.ErrProtocolOrder, "server proof incomplete: %d of %d rounds", rec.ServerAuth.Done(), s.rounds)
		}
		rec.MutualConfirmed = true
		s.persist(rec)
		jww.INFO.Printf("Participant %q mutually authenticated", id)
		s.obs.Notify(Event{Kind: EventMutualConfirmed, ParticipantID: id, Reason: reason})
		return nil
	})
	if err != nil {
		logRejection("confirm", id, err)
	}
	return err
}

// revoke 撤销认证，调用方持有记录锁
func (s *Session) revoke(rec *participant.Record, reason string) {
	rec.Revoke()
	s.persist(rec)
	jww.WARN.Printf("Participant %q revoked: %s", rec.ID, reason)
	s.obs.Notify(Event{Kind: EventRevoked, ParticipantID: rec.ID, Reason: reason})
}
