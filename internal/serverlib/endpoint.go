package serverlib

import (
	"github.com/CamberLoid/sealedbid/internal/bid"
	"github.com/CamberLoid/sealedbid/internal/restfulpayload"
)

// Endpoint 把会话操作包装成消息收发，HTTP 层和进程内客户端都通过它访问会话
type Endpoint struct {
	Session *Session
}

func NewEndpoint(s *Session) *Endpoint {
	return &Endpoint{Session: s}
}

// Welcome 返回会话公开参数
func (e *Endpoint) Welcome() (*restfulpayload.Welcome, error) {
	s := e.Session
	k := s.Keys()
	auth, bidding := s.Windows()
	return &restfulpayload.Welcome{
		Status:      restfulpayload.StatusOK,
		SessionID:   s.ID,
		Message:     "sealed-bid auction",
		N:           restfulpayload.NewBigInt(k.RSA.N),
		E:           restfulpayload.NewBigInt(k.RSA.E),
		V:           restfulpayload.NewBigInt(k.ZK.V),
		P:           restfulpayload.NewBigInt(k.Params.P),
		Q:           restfulpayload.NewBigInt(k.Params.Q),
		A:           restfulpayload.NewBigInt(k.Params.A),
		Rounds:      s.Rounds(),
		AllowedIDs:  s.AllowedIDs(),
		AuthOpen:    auth,
		BiddingOpen: bidding,
	}, nil
}

func (e *Endpoint) Register(req *restfulpayload.RegisterReq) (*restfulpayload.Ack, error) {
	if err := restfulpayload.Validate(req); err != nil {
		return nil, err
	}
	if err := e.Session.Register(req.ID, req.Y.Int(), req.V.Int()); err != nil {
		return nil, err
	}
	return &restfulpayload.Ack{Status: restfulpayload.StatusOK, Message: "registered"}, nil
}

func (e *Endpoint) State(req *restfulpayload.StateReq) (*restfulpayload.StateResp, error) {
	if err := restfulpayload.Validate(req); err != nil {
		return nil, err
	}
	return &restfulpayload.StateResp{
		Status: restfulpayload.StatusOK,
		ID:     req.ID,
		State:  e.Session.State(req.ID).String(),
	}, nil
}

// --- 认证部分 ---

func (e *Endpoint) AuthCommit(req *restfulpayload.AuthCommitReq) (*restfulpayload.AuthChallenge, error) {
	if err := restfulpayload.Validate(req); err != nil {
		return nil, err
	}
	b, err := e.Session.ClientAuthCommit(req.ID, req.Round, req.Rounds, req.Z.Int())
	if err != nil {
		return nil, err
	}
	return &restfulpayload.AuthChallenge{Status: restfulpayload.StatusOK, Round: req.Round, B: b}, nil
}

func (e *Endpoint) AuthRespond(req *restfulpayload.AuthResponseReq) (*restfulpayload.AuthResult, error) {
	if err := restfulpayload.Validate(req); err != nil {
		return nil, err
	}
	accepted, err := e.Session.ClientAuthRespond(req.ID, req.Round, req.Resp.Int())
	if err != nil {
		return nil, err
	}
	return &restfulpayload.AuthResult{Status: restfulpayload.StatusOK, Round: req.Round, Accepted: accepted}, nil
}

func (e *Endpoint) ServerAuthCommit(req *restfulpayload.ServerAuthReq) (*restfulpayload.ServerAuthCommit, error) {
	if err := restfulpayload.Validate(req); err != nil {
		return nil, err
	}
	z, err := e.Session.ServerAuthCommit(req.ID, req.Round, req.Rounds)
	if err != nil {
		return nil, err
	}
	return &restfulpayload.ServerAuthCommit{Status: restfulpayload.StatusOK, Round: req.Round, Z: restfulpayload.NewBigInt(z)}, nil
}

func (e *Endpoint) ServerAuthRespond(req *restfulpayload.ServerAuthChallengeReq) (*restfulpayload.ServerAuthResponse, error) {
	if err := restfulpayload.Validate(req); err != nil {
		return nil, err
	}
	resp, err := e.Session.ServerAuthRespond(req.ID, req.Round, req.B)
	if err != nil {
		return nil, err
	}
	return &restfulpayload.ServerAuthResponse{Status: restfulpayload.StatusOK, Round: req.Round, Resp: restfulpayload.NewBigInt(resp)}, nil
}

func (e *Endpoint) Confirm(req *restfulpayload.MutualConfirmReq) (*restfulpayload.Ack, error) {
	if err := restfulpayload.Validate(req); err != nil {
		return nil, err
	}
	if err := e.Session.ConfirmMutual(req.ID, req.OK, req.Reason); err != nil {
		return nil, err
	}
	msg := "confirmed"
	if !req.OK {
		msg = "authentication revoked"
	}
	return &restfulpayload.Ack{Status: restfulpayload.StatusOK, Message: msg}, nil
}

// --- 出价部分 ---

func (e *Endpoint) SubmitBid(req *restfulpayload.BidReq) (*restfulpayload.BidResult, error) {
	if err := restfulpayload.Validate(req); err != nil {
		return nil, err
	}
	b, err := e.Session.SubmitBid(req.ID, req.Value.Int(), req.Y.Int(), req.H.Int(), req.R.Int(), req.S.Int())
	if err != nil {
		return nil, err
	}
	return &restfulpayload.BidResult{Status: restfulpayload.StatusOK, Accepted: true, UUID: b.UUID}, nil
}

func (e *Endpoint) Bids() (*restfulpayload.BidsPublished, error) {
	pub, err := e.Session.PublishBids()
	if err != nil {
		return nil, err
	}
	return BidsPayload(pub), nil
}

func (e *Endpoint) Results() (*restfulpayload.ResultsPublished, error) {
	out, err := e.Session.PublishResults()
	if err != nil {
		return nil, err
	}
	return ResultsPayload(out), nil
}

// Decide 开标并返回结果
func (e *Endpoint) Decide() (*restfulpayload.ResultsPublished, error) {
	out, err := e.Session.DecideWinner()
	if err != nil {
		return nil, err
	}
	return ResultsPayload(out), nil
}

// --- 管理部分 ---

// SetWindows 开关认证/出价窗口，返回新的状态
func (e *Endpoint) SetWindows(req *restfulpayload.WindowReq) (*restfulpayload.BiddingStatus, error) {
	if req.AuthOpen != nil {
		e.Session.SetAuthWindow(*req.AuthOpen)
	}
	if req.BiddingOpen != nil {
		e.Session.SetBidding(*req.BiddingOpen)
	}
	auth, bidding := e.Session.Windows()
	return &restfulpayload.BiddingStatus{Status: restfulpayload.StatusOK, AuthOpen: auth, BiddingOpen: bidding}, nil
}

func (e *Endpoint) SetAllowedIDs(req *restfulpayload.AllowedIDsReq) (*restfulpayload.Ack, error) {
	if err := restfulpayload.Validate(req); err != nil {
		return nil, err
	}
	e.Session.SetAllowedIDs(req.IDs)
	return &restfulpayload.Ack{Status: restfulpayload.StatusOK}, nil
}

// --- 转换部分 ---

func BidsPayload(pub []bid.Published) *restfulpayload.BidsPublished {
	out := &restfulpayload.BidsPublished{Status: restfulpayload.StatusOK, Bids: make([]restfulpayload.PublishedBid, len(pub))}
	for i, p := range pub {
		out.Bids[i] = restfulpayload.PublishedBid{
			ID: p.ParticipantID,
			Y:  restfulpayload.NewBigInt(p.Ciphertext),
			R:  restfulpayload.NewBigInt(p.R),
			S:  restfulpayload.NewBigInt(p.S),
		}
	}
	return out
}

func ResultsPayload(o *bid.Outcome) *restfulpayload.ResultsPublished {
	out := &restfulpayload.ResultsPublished{
		Status:  restfulpayload.StatusOK,
		Winner:  o.WinnerID,
		Results: make([]restfulpayload.ResultEntry, len(o.Results)),
	}
	for i, r := range o.Results {
		out.Results[i] = restfulpayload.ResultEntry{ID: r.ParticipantID, Value: restfulpayload.NewBigInt(r.Value), Winner: r.Winner}
	}
	return out
}
