package serverlib

import (
	"math/big"

	"github.com/CamberLoid/sealedbid/internal/bid"
	"github.com/CamberLoid/sealedbid/internal/misc"
	"github.com/CamberLoid/sealedbid/internal/participant"
	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
)

// SubmitBid 接受一个封装出价
// 依次检查：可出价（NotAuthorized）、密文范围、摘要（HashMismatch）、签名（BadSignature）。
// claimed 是出价方自报的明文，只记录不使用；同一参与方后来的出价取代之前的。
func (s *Session) SubmitBid(id string, claimed, ciphertext, h, r, sig *big.Int) (*bid.Bid, error) {
	var accepted *bid.Bid
	err := s.withRecord(id, func(rec *participant.Record) error {
		if st := rec.State(s.biddingOpen); st != participant.CanBid {
			if !s.biddingOpen {
				return misc.Reject(misc.ErrNotAuthorized, "bidding window is closed")
			}
			return misc.Reject(misc.ErrNotAuthorized, "participant is %s, not allowed to bid", st)
		}
		if err := ValidateBid(s.keys, rec.SignaturePub, ciphertext, h, r, sig); err != nil {
			return err
		}

		b := bid.New(id, ciphertext, h, r, sig)
		b.Claimed = claimed
		if err := s.store.PutBid(b); err != nil {
			return errors.Wrap(err, "record bid")
		}
		s.outcomeMu.Lock()
		s.bids.Append(b)
		s.outcome = nil
		s.outcomeMu.Unlock()
		accepted = b.Clone()
		return nil
	})
	if err != nil {
		logRejection("bid", id, err)
		s.notifyBidRejected(id, err)
		return nil, err
	}
	jww.INFO.Printf("Bid %s accepted from %q", accepted.UUID, id)
	s.obs.Notify(Event{Kind: EventBidAccepted, ParticipantID: id, Bid: accepted.Clone()})
	return accepted, nil
}

func (s *Session) notifyBidRejected(id string, err error) {
	if misc.KindName(err) == "" {
		return
	}
	s.obs.Notify(Event{Kind: EventBidRejected, ParticipantID: id, Reason: err.Error()})
}

// Bids 返回按接受顺序排列的全部出价副本
func (s *Session) Bids() []*bid.Bid {
	return s.bids.All()
}

// --- 开标部分 ---

// DecideWinner 解密每个参与方的最后一次出价并选出最高者
// 平局由最先出价的参与方获胜；无法解密的出价不参与比较。
func (s *Session) DecideWinner() (*bid.Outcome, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, misc.Reject(misc.ErrNotAuthorized, "session is closed")
	}

	// 开标期间有新出价时重新开标
	var out *bid.Outcome
	for {
		latest, seen := s.bids.LatestAt()
		out = s.decide(latest)

		s.outcomeMu.Lock()
		if s.bids.Len() == seen {
			s.outcome = out
			s.outcomeMu.Unlock()
			break
		}
		s.outcomeMu.Unlock()
		jww.DEBUG.Print("Bids arrived while deciding, deciding again")
	}
	if out.WinnerID == "" {
		jww.INFO.Print("No valid bids, no winner")
	} else {
		jww.INFO.Printf("Winner: %q", out.WinnerID)
	}
	return out.Clone(), nil
}

func (s *Session) decide(latest []*bid.Bid) *bid.Outcome {
	out := bid.Decide(latest, func(c *big.Int) (v *big.Int, err error) {
		err = Recover(func() (err error) {
			v, err = s.keys.Unseal(c)
			return err
		})
		return v, err
	})
	for _, b := range latest {
		switch {
		case b.Value == nil:
			jww.WARN.Printf("Bid %s from %q could not be decrypted", b.UUID, b.ParticipantID)
		case b.Claimed != nil && b.Claimed.Cmp(b.Value) != 0:
			jww.WARN.Printf("Bid %s from %q: claimed %s, decrypted %s", b.UUID, b.ParticipantID, b.Claimed, b.Value)
		}
	}
	return out
}

// PublishBids 公开每个参与方的最后一次出价（密文与签名），不修改会话状态
func (s *Session) PublishBids() ([]bid.Published, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, misc.Reject(misc.ErrNotAuthorized, "session is closed")
	}
	pub := bid.Publish(s.bids.Latest())
	s.obs.Notify(Event{Kind: EventBidsPublished, Bids: append([]bid.Published(nil), pub...)})
	return pub, nil
}

// PublishResults 公开开标结果；尚未开标时为越序
func (s *Session) PublishResults() (*bid.Outcome, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, misc.Reject(misc.ErrNotAuthorized, "session is closed")
	}
	s.outcomeMu.Lock()
	out := s.outcome
	s.outcomeMu.Unlock()
	if out == nil {
		return nil, misc.Reject(misc.ErrProtocolOrder, "winner has not been decided")
	}
	s.obs.Notify(Event{Kind: EventResultsPublished, Outcome: out.Clone()})
	return out.Clone(), nil
}
