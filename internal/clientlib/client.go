package clientlib

import (
	"database/sql"
	"io"
	"math/big"

	"github.com/CamberLoid/sealedbid/internal/bignum"
	"github.com/CamberLoid/sealedbid/internal/ffs"
	"github.com/CamberLoid/sealedbid/internal/misc"
	"github.com/CamberLoid/sealedbid/internal/restfulpayload"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
)

// Client 通过 Transport 以一个参与方身份参加拍卖
type Client struct {
	Transport   Transport
	Participant *Participant
	// Database 为 nil 时不在本地记录出价
	Database *sql.DB
	// NewChallenger 提供验证服务端时的挑战比特来源
	NewChallenger func() (io.Reader, error)
}

// NewClient 取得会话参数并生成参与方密钥
func NewClient(t Transport, id string, src *bignum.EntropySource, database *sql.DB) (*Client, error) {
	w, err := t.Welcome()
	if err != nil {
		return nil, errors.Wrap(err, "welcome")
	}
	info, err := ParseWelcome(w)
	if err != nil {
		return nil, err
	}
	p, err := NewParticipant(id, info, src)
	if err != nil {
		return nil, err
	}
	jww.INFO.Printf("Joined session %s as %q, k = %d", info.SessionID, id, info.Rounds)
	return &Client{Transport: t, Participant: p, Database: database, NewChallenger: ffs.NewChallenger}, nil
}

// --- 注册与认证部分 ---

func (c *Client) Register() error {
	_, err := c.Transport.Register(c.Participant.RegistrationRequest())
	return errors.Wrap(err, "register")
}

// ProveToServer 向服务端证明持有 s，运行全部 k 轮
func (c *Client) ProveToServer() error {
	p := c.Participant
	k := p.Server.Rounds
	prover := ffs.NewProver(p.Keys.ZK.N, p.Keys.ZK.S, k, p.src)
	for i := 1; i <= k; i++ {
		z, err := prover.Commit(i)
		if err != nil {
			return err
		}
		ch, err := c.Transport.AuthCommit(&restfulpayload.AuthCommitReq{ID: p.ID, Round: i, Rounds: k, Z: restfulpayload.NewBigInt(z)})
		if err != nil {
			return errors.Wrapf(err, "round %d commit", i)
		}
		resp, err := prover.Respond(i, ch.B)
		if err != nil {
			return err
		}
		res, err := c.Transport.AuthRespond(&restfulpayload.AuthResponseReq{ID: p.ID, Round: i, Resp: restfulpayload.NewBigInt(resp)})
		if err != nil {
			return errors.Wrapf(err, "round %d response", i)
		}
		if res.Accepted != (i == k) {
			return misc.Reject(misc.ErrProtocolOrder, "server reported accepted = %v after round %d of %d", res.Accepted, i, k)
		}
	}
	jww.DEBUG.Printf("%q proved its identity in %d rounds", p.ID, k)
	return nil
}

// VerifyServer 验证服务端的 k 轮证明并回复结论
// 任何一轮失败都会告知服务端拒绝，并返回 ErrProofRejected 种类的错误。
func (c *Client) VerifyServer() error {
	p := c.Participant
	k := p.Server.Rounds
	challenger, err := c.NewChallenger()
	if err != nil {
		return err
	}
	verifier := ffs.NewVerifier(p.Server.RSA.N, p.Server.ZKV, k, challenger)

	for i := 1; i <= k; i++ {
		commit, err := c.Transport.ServerAuthCommit(&restfulpayload.ServerAuthReq{ID: p.ID, Round: i, Rounds: k})
		if err != nil {
			return errors.Wrapf(err, "round %d server commit", i)
		}
		b, err := verifier.Challenge(i, commit.Z.Int())
		if err != nil {
			return c.rejectServer(err)
		}
		resp, err := c.Transport.ServerAuthRespond(&restfulpayload.ServerAuthChallengeReq{ID: p.ID, Round: i, B: b})
		if err != nil {
			return errors.Wrapf(err, "round %d server response", i)
		}
		if _, err = verifier.Check(i, resp.Resp.Int()); err != nil {
			return c.rejectServer(err)
		}
	}
	if !verifier.Accepted() {
		return c.rejectServer(misc.Reject(misc.ErrProofRejected, "server proof incomplete"))
	}

	_, err = c.Transport.Confirm(&restfulpayload.MutualConfirmReq{ID: p.ID, OK: true, Reason: "server proof accepted"})
	return errors.Wrap(err, "confirm")
}

func (c *Client) rejectServer(cause error) error {
	jww.WARN.Printf("Server proof rejected: %v", cause)
	reason := misc.ReasonOf(cause)
	if _, err := c.Transport.Confirm(&restfulpayload.MutualConfirmReq{ID: c.Participant.ID, OK: false, Reason: reason}); err != nil {
		jww.ERROR.Printf("Could not notify server: %v", err)
	}
	return misc.Reject(misc.ErrProofRejected, "server proof: %s", reason)
}

// Authenticate 注册并完成双向认证
func (c *Client) Authenticate() error {
	if err := c.Register(); err != nil {
		return err
	}
	if err := c.ProveToServer(); err != nil {
		return err
	}
	return c.VerifyServer()
}

// --- 出价部分 ---

// Submit 提交一个已封装的出价，成功后写入本地记录
func (c *Client) Submit(sb *SealedBid) (uuid.UUID, error) {
	res, err := c.Transport.SubmitBid(sb.Request(c.Participant.ID))
	if err != nil {
		return uuid.Nil, err
	}
	if c.Database != nil {
		own := OwnBid{UUID: res.UUID, Session: c.Participant.Server.SessionID, Value: sb.Value, Ciphertext: sb.Ciphertext}
		if err = recordOwnBid(c.Database, c.Participant.ID, own); err != nil {
			jww.ERROR.Printf("Bid %s accepted but not recorded: %v", res.UUID, err)
		}
	}
	jww.INFO.Printf("Bid %s accepted", res.UUID)
	return res.UUID, nil
}

// Bid 封装并提交 value
func (c *Client) Bid(value *big.Int) (uuid.UUID, error) {
	sb, err := c.Participant.SealBid(value)
	if err != nil {
		return uuid.Nil, err
	}
	return c.Submit(sb)
}

// Join 完成认证并出价
func (c *Client) Join(value *big.Int) (uuid.UUID, error) {
	if err := c.Authenticate(); err != nil {
		return uuid.Nil, err
	}
	return c.Bid(value)
}

// OwnBids 返回本地记录的出价
func (c *Client) OwnBids() ([]OwnBid, error) {
	if c.Database == nil {
		return nil, nil
	}
	return listOwnBids(c.Database, c.Participant.ID)
}

// State 查询服务端记录的当前阶段
func (c *Client) State() (string, error) {
	resp, err := c.Transport.State(&restfulpayload.StateReq{ID: c.Participant.ID})
	if err != nil {
		return "", err
	}
	return resp.State, nil
}
