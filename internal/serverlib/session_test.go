package serverlib_test

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"testing"

	"github.com/CamberLoid/sealedbid/internal/bid"
	"github.com/CamberLoid/sealedbid/internal/bignum"
	"github.com/CamberLoid/sealedbid/internal/db"
	"github.com/CamberLoid/sealedbid/internal/ffs"
	"github.com/CamberLoid/sealedbid/internal/key"
	"github.com/CamberLoid/sealedbid/internal/misc"
	"github.com/CamberLoid/sealedbid/internal/participant"
	"github.com/CamberLoid/sealedbid/internal/rsa"
	"github.com/CamberLoid/sealedbid/internal/serverlib"
	"github.com/CamberLoid/sealedbid/internal/signature"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

const testRounds = 4

var (
	keysOnce sync.Once
	keys     *serverlib.ServerKeys
	keysErr  error
)

func serverKeys(t testing.TB) *serverlib.ServerKeys {
	keysOnce.Do(func() {
		keys, keysErr = serverlib.GenerateServerKeys(context.Background(), 64, bignum.NewSeededEntropySource([]byte("serverlib-keys")))
	})
	require.NoError(t, keysErr)
	return keys
}

func newSession(t testing.TB, obs serverlib.Observer) *serverlib.Session {
	s, err := serverlib.NewSession(serverlib.Config{Rounds: testRounds, AuthOpen: true, BiddingOpen: true},
		serverKeys(t), bignum.NewSeededEntropySource([]byte("serverlib-session")), nil, obs)
	require.NoError(t, err)
	return s
}

// --- 测试用参与方 --- //

type bidder struct {
	id  string
	sig *key.SignatureKeyChain
	zk  *key.ZKKeyChain
	src *bignum.EntropySource
}

func newBidder(t testing.TB, k *serverlib.ServerKeys, id string) *bidder {
	src := bignum.NewSeededEntropySource([]byte("bidder/" + id))
	sk, err := signature.GenerateKey(k.Params, src)
	require.NoError(t, err)
	zk, err := ffs.GenerateKey(k.RSA.N, src)
	require.NoError(t, err)
	return &bidder{id: id, sig: sk, zk: zk, src: src}
}

func (b *bidder) register(s *serverlib.Session) error {
	return s.Register(b.id, b.sig.Y, b.zk.V)
}

func (b *bidder) prove(s *serverlib.Session) error {
	p := ffs.NewProver(b.zk.N, b.zk.S, testRounds, b.src)
	for i := 1; i <= testRounds; i++ {
		z, err := p.Commit(i)
		if err != nil {
			return err
		}
		c, err := s.ClientAuthCommit(b.id, i, testRounds, z)
		if err != nil {
			return err
		}
		resp, err := p.Respond(i, c)
		if err != nil {
			return err
		}
		accepted, err := s.ClientAuthRespond(b.id, i, resp)
		if err != nil {
			return err
		}
		if accepted != (i == testRounds) {
			return fmt.Errorf("round %d: accepted = %v", i, accepted)
		}
	}
	return nil
}

// verifyServer 运行服务端证明的前 rounds 轮
func (b *bidder) verifyServer(s *serverlib.Session, rounds int) error {
	k := s.Keys()
	challenger, err := ffs.NewKeyedChallenger([]byte("verify/" + b.id))
	if err != nil {
		return err
	}
	v := ffs.NewVerifier(k.RSA.N, k.ZK.V, testRounds, challenger)
	for i := 1; i <= rounds; i++ {
		z, err := s.ServerAuthCommit(b.id, i, testRounds)
		if err != nil {
			return err
		}
		c, err := v.Challenge(i, z)
		if err != nil {
			return err
		}
		resp, err := s.ServerAuthRespond(b.id, i, c)
		if err != nil {
			return err
		}
		if _, err = v.Check(i, resp); err != nil {
			return err
		}
	}
	if rounds == testRounds && !v.Accepted() {
		return errors.New("server proof not accepted")
	}
	return nil
}

func (b *bidder) authenticate(s *serverlib.Session) error {
	if err := b.register(s); err != nil {
		return err
	}
	if err := b.prove(s); err != nil {
		return err
	}
	if err := b.verifyServer(s, testRounds); err != nil {
		return err
	}
	return s.ConfirmMutual(b.id, true, "server proof accepted")
}

type sealed struct {
	y, h, r, s *big.Int
}

func (b *bidder) seal(t testing.TB, k *serverlib.ServerKeys, value int64) sealed {
	y, err := rsa.Encrypt(big.NewInt(value), k.RSA.Public())
	require.NoError(t, err)
	h := signature.HashToQ(bid.Message(y), k.Params.Q)
	r, s, err := signature.SignHash(h, k.Params, b.sig.X, b.src)
	require.NoError(t, err)
	return sealed{y, h, r, s}
}

func (b *bidder) submit(s *serverlib.Session, sb sealed) error {
	_, err := s.SubmitBid(b.id, nil, sb.y, sb.h, sb.r, sb.s)
	return err
}

func requireKind(t testing.TB, kind, err error) {
	t.Helper()
	require.Truef(t, errors.Is(err, kind), "expected %v, got %v", kind, err)
}

// --- 测试 --- //

func TestHonestBidThenTamperedBid(t *testing.T) {
	s := newSession(t, nil)
	a := newBidder(t, s.Keys(), "A")
	require.NoError(t, a.authenticate(s))
	require.Equal(t, participant.CanBid, s.State("A"))

	honest := a.seal(t, s.Keys(), 1000)
	accepted, err := s.SubmitBid("A", big.NewInt(1000), honest.y, honest.h, honest.r, honest.s)
	require.NoError(t, err)
	require.Equal(t, "A", accepted.ParticipantID)

	// 对一个密文签名，提交另一个密文
	other := a.seal(t, s.Keys(), 1)
	tampered := sealed{y: other.y, h: honest.h, r: honest.r, s: honest.s}
	requireKind(t, misc.ErrHashMismatch, a.submit(s, tampered))

	// 摘要与密文一致，但签名来自另一条消息
	forged := sealed{y: other.y, h: other.h, r: honest.r, s: honest.s}
	requireKind(t, misc.ErrBadSignature, a.submit(s, forged))

	require.Len(t, s.Bids(), 1)
}

func TestHighestBidWins(t *testing.T) {
	s := newSession(t, nil)
	a := newBidder(t, s.Keys(), "A")
	b := newBidder(t, s.Keys(), "B")
	require.NoError(t, a.authenticate(s))
	require.NoError(t, b.authenticate(s))

	require.NoError(t, a.submit(s, a.seal(t, s.Keys(), 500)))
	require.NoError(t, b.submit(s, b.seal(t, s.Keys(), 700)))

	out, err := s.DecideWinner()
	require.NoError(t, err)
	require.Equal(t, "B", out.WinnerID)
	require.Len(t, out.Results, 2)
	require.Equal(t, int64(500), out.Results[0].Value.Int64())
	require.Equal(t, int64(700), out.Results[1].Value.Int64())

	pub, err := s.PublishResults()
	require.NoError(t, err)
	require.Equal(t, "B", pub.WinnerID)
}

func TestLaterBidSupersedes(t *testing.T) {
	s := newSession(t, nil)
	a := newBidder(t, s.Keys(), "A")
	b := newBidder(t, s.Keys(), "B")
	require.NoError(t, a.authenticate(s))
	require.NoError(t, b.authenticate(s))

	require.NoError(t, a.submit(s, a.seal(t, s.Keys(), 800)))
	require.NoError(t, b.submit(s, b.seal(t, s.Keys(), 500)))
	last := a.seal(t, s.Keys(), 300)
	require.NoError(t, a.submit(s, last))

	pub, err := s.PublishBids()
	require.NoError(t, err)
	require.Len(t, pub, 2)
	require.Equal(t, "A", pub[0].ParticipantID)
	require.Equal(t, 0, pub[0].Ciphertext.Cmp(last.y))
	require.Len(t, s.Bids(), 3)

	out, err := s.DecideWinner()
	require.NoError(t, err)
	require.Equal(t, "B", out.WinnerID)
}

func TestEqualBidsFirstBidderWins(t *testing.T) {
	s := newSession(t, nil)
	a := newBidder(t, s.Keys(), "A")
	b := newBidder(t, s.Keys(), "B")
	require.NoError(t, a.authenticate(s))
	require.NoError(t, b.authenticate(s))
	require.NoError(t, b.submit(s, b.seal(t, s.Keys(), 600)))
	require.NoError(t, a.submit(s, a.seal(t, s.Keys(), 600)))

	out, err := s.DecideWinner()
	require.NoError(t, err)
	require.Equal(t, "B", out.WinnerID)
}

func TestPrematureConfirmationRejected(t *testing.T) {
	s := newSession(t, nil)
	a := newBidder(t, s.Keys(), "A")
	require.NoError(t, a.register(s))

	requireKind(t, misc.ErrProtocolOrder, s.ConfirmMutual("A", true, ""))
	_, err := s.ServerAuthCommit("A", 1, testRounds)
	requireKind(t, misc.ErrProtocolOrder, err)

	require.NoError(t, a.prove(s))
	require.NoError(t, a.verifyServer(s, testRounds-1))
	requireKind(t, misc.ErrProtocolOrder, s.ConfirmMutual("A", true, ""))
	require.Equal(t, participant.ClientProved, s.State("A"))

	requireKind(t, misc.ErrNotAuthorized, a.submit(s, a.seal(t, s.Keys(), 10)))
}

func TestNegativeConfirmationRevokes(t *testing.T) {
	s := newSession(t, nil)
	a := newBidder(t, s.Keys(), "A")
	require.NoError(t, a.authenticate(s))
	require.NoError(t, s.ConfirmMutual("A", false, "server proof failed"))
	require.Equal(t, participant.KeysRegistered, s.State("A"))
	requireKind(t, misc.ErrNotAuthorized, a.submit(s, a.seal(t, s.Keys(), 10)))

	// 重新认证后可以出价
	require.NoError(t, a.prove(s))
	require.NoError(t, a.verifyServer(s, testRounds))
	require.NoError(t, s.ConfirmMutual("A", true, ""))
	require.NoError(t, a.submit(s, a.seal(t, s.Keys(), 10)))
}

func TestRestartedClientProofRevokes(t *testing.T) {
	s := newSession(t, nil)
	a := newBidder(t, s.Keys(), "A")
	require.NoError(t, a.authenticate(s))

	p := ffs.NewProver(a.zk.N, a.zk.S, testRounds, a.src)
	z, err := p.Commit(1)
	require.NoError(t, err)
	_, err = s.ClientAuthCommit("A", 1, testRounds, z)
	require.NoError(t, err)
	require.Equal(t, participant.KeysRegistered, s.State("A"))

	// 服务端证明的进度也被清空
	require.NoError(t, a.prove(s))
	requireKind(t, misc.ErrProtocolOrder, s.ConfirmMutual("A", true, ""))
}

func TestWrongResponseRejected(t *testing.T) {
	s := newSession(t, nil)
	a := newBidder(t, s.Keys(), "A")
	require.NoError(t, a.register(s))

	p := ffs.NewProver(a.zk.N, a.zk.S, testRounds, a.src)
	z, err := p.Commit(1)
	require.NoError(t, err)
	c, err := s.ClientAuthCommit("A", 1, testRounds, z)
	require.NoError(t, err)
	resp, err := p.Respond(1, c)
	require.NoError(t, err)

	bad := new(big.Int).Add(resp, big.NewInt(1))
	_, err = s.ClientAuthRespond("A", 1, bad)
	requireKind(t, misc.ErrProofRejected, err)

	// 失败后只能从第 1 轮重新开始
	_, err = s.ClientAuthCommit("A", 2, testRounds, z)
	requireKind(t, misc.ErrProtocolOrder, err)
	require.NoError(t, a.prove(s))
	require.Equal(t, participant.ClientProved, s.State("A"))
}

func TestNotAuthorized(t *testing.T) {
	s := newSession(t, nil)
	k := s.Keys()
	a := newBidder(t, k, "A")
	ghost := newBidder(t, k, "ghost")

	requireKind(t, misc.ErrNotAuthorized, ghost.submit(s, ghost.seal(t, k, 1)))
	_, err := s.ClientAuthCommit("ghost", 1, testRounds, big.NewInt(4))
	requireKind(t, misc.ErrNotAuthorized, err)

	require.NoError(t, a.register(s))
	requireKind(t, misc.ErrNotAuthorized, a.submit(s, a.seal(t, k, 1)))

	// 关闭认证窗口
	s.SetAuthWindow(false)
	requireKind(t, misc.ErrNotAuthorized, a.prove(s))
	s.SetAuthWindow(true)
	require.NoError(t, a.prove(s))
	require.NoError(t, a.verifyServer(s, testRounds))
	require.NoError(t, s.ConfirmMutual("A", true, ""))

	// 关闭出价窗口不撤销认证
	s.SetBidding(false)
	require.Equal(t, participant.MutuallyAuthenticated, s.State("A"))
	requireKind(t, misc.ErrNotAuthorized, a.submit(s, a.seal(t, k, 1)))
	s.SetBidding(true)
	require.NoError(t, a.submit(s, a.seal(t, k, 1)))

	// 名单
	s.SetAllowedIDs([]string{"A"})
	requireKind(t, misc.ErrNotAuthorized, ghost.register(s))
	s.SetAllowedIDs(nil)
	require.NoError(t, ghost.register(s))
}

func TestRegistrationChecks(t *testing.T) {
	s := newSession(t, nil)
	k := s.Keys()
	a := newBidder(t, k, "A")

	requireKind(t, misc.ErrInvalidParameter, s.Register("A", big.NewInt(0), a.zk.V))
	requireKind(t, misc.ErrInvalidParameter, s.Register("A", k.Params.P, a.zk.V))
	requireKind(t, misc.ErrInvalidParameter, s.Register("A", a.sig.Y, big.NewInt(0)))
	requireKind(t, misc.ErrInvalidParameter, s.Register("A", a.sig.Y, k.RSA.P))
	requireKind(t, misc.ErrInvalidParameter, s.Register("", a.sig.Y, a.zk.V))
	require.Equal(t, participant.Unregistered, s.State("A"))
}

func TestRoundCountMustMatch(t *testing.T) {
	s := newSession(t, nil)
	a := newBidder(t, s.Keys(), "A")
	require.NoError(t, a.register(s))
	_, err := s.ClientAuthCommit("A", 1, testRounds+1, big.NewInt(4))
	requireKind(t, misc.ErrInvalidParameter, err)

	_, err = serverlib.NewSession(serverlib.Config{Rounds: 0}, s.Keys(), nil, nil, nil)
	requireKind(t, misc.ErrInvalidParameter, err)
}

func TestResultsBeforeDecision(t *testing.T) {
	s := newSession(t, nil)
	_, err := s.PublishResults()
	requireKind(t, misc.ErrProtocolOrder, err)

	out, err := s.DecideWinner()
	require.NoError(t, err)
	require.Empty(t, out.WinnerID)

	// 新的出价使旧结果失效
	a := newBidder(t, s.Keys(), "A")
	require.NoError(t, a.authenticate(s))
	require.NoError(t, a.submit(s, a.seal(t, s.Keys(), 5)))
	_, err = s.PublishResults()
	requireKind(t, misc.ErrProtocolOrder, err)
}

func TestShutdownDiscardsState(t *testing.T) {
	s := newSession(t, nil)
	a := newBidder(t, s.Keys(), "A")
	require.NoError(t, a.authenticate(s))
	require.NoError(t, a.submit(s, a.seal(t, s.Keys(), 5)))

	s.Shutdown()
	require.True(t, s.Closed())
	require.Equal(t, participant.Unregistered, s.State("A"))
	require.Empty(t, s.Bids())
	requireKind(t, misc.ErrNotAuthorized, a.submit(s, a.seal(t, s.Keys(), 5)))
	requireKind(t, misc.ErrNotAuthorized, a.register(s))
	_, err := s.PublishBids()
	requireKind(t, misc.ErrNotAuthorized, err)
}

func TestObserverEvents(t *testing.T) {
	obs := serverlib.NewChannelObserver(64)
	s := newSession(t, obs)
	a := newBidder(t, s.Keys(), "A")
	require.NoError(t, a.authenticate(s))
	require.NoError(t, a.submit(s, a.seal(t, s.Keys(), 5)))
	requireKind(t, misc.ErrHashMismatch, a.submit(s, sealed{big.NewInt(6), big.NewInt(1), big.NewInt(1), big.NewInt(1)}))
	s.SetBidding(false)

	var kinds []serverlib.EventKind
	for len(obs.C) > 0 {
		kinds = append(kinds, (<-obs.C).Kind)
	}
	require.Equal(t, []serverlib.EventKind{
		serverlib.EventRegistered,
		serverlib.EventClientProved,
		serverlib.EventMutualConfirmed,
		serverlib.EventBidAccepted,
		serverlib.EventBidRejected,
		serverlib.EventBiddingStatus,
	}, kinds)
}

func TestParticipantsProgressConcurrently(t *testing.T) {
	conn, err := db.Open(":memory:")
	require.NoError(t, err)
	defer conn.Close()
	store := db.NewSQLStore(conn)

	s, err := serverlib.NewSession(serverlib.Config{Rounds: testRounds, AuthOpen: true, BiddingOpen: true},
		serverKeys(t), bignum.NewSeededEntropySource([]byte("concurrent")), store, nil)
	require.NoError(t, err)

	const n = 8
	bidders := make([]*bidder, n)
	for i := range bidders {
		bidders[i] = newBidder(t, s.Keys(), fmt.Sprintf("P%d", i))
	}
	sealedBids := make([]sealed, n)
	for i, b := range bidders {
		sealedBids[i] = b.seal(t, s.Keys(), int64(100+i))
	}

	var wg sync.WaitGroup
	errs := make([]error, n)
	for i, b := range bidders {
		wg.Add(1)
		go func(i int, b *bidder) {
			defer wg.Done()
			if errs[i] = b.authenticate(s); errs[i] == nil {
				errs[i] = b.submit(s, sealedBids[i])
			}
		}(i, b)
	}
	wg.Wait()
	for i, err := range errs {
		require.NoError(t, err, "participant %d", i)
	}

	out, err := s.DecideWinner()
	require.NoError(t, err)
	require.Equal(t, fmt.Sprintf("P%d", n-1), out.WinnerID)

	stored, err := store.GetBids()
	require.NoError(t, err)
	require.Len(t, stored, n)
	row, err := store.GetParticipant("P0")
	require.NoError(t, err)
	require.Equal(t, participant.CanBid.String(), row.State)
}

// 开标与出价交错时，保存的结果不能漏掉已接受的出价
func TestDecisionNeverMissesAcceptedBid(t *testing.T) {
	s := newSession(t, nil)
	const n = 6
	bidders := make([]*bidder, n)
	sealedBids := make([]sealed, n)
	for i := range bidders {
		bidders[i] = newBidder(t, s.Keys(), fmt.Sprintf("P%d", i))
		require.NoError(t, bidders[i].authenticate(s))
		sealedBids[i] = bidders[i].seal(t, s.Keys(), int64(10+i))
	}

	var (
		wg        sync.WaitGroup
		decideErr error
	)
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			if _, err := s.DecideWinner(); err != nil {
				decideErr = err
				return
			}
		}
	}()
	for i, b := range bidders {
		require.NoError(t, b.submit(s, sealedBids[i]))
		// 出价被接受后，要么没有结果，要么结果包含它
		if out, err := s.PublishResults(); err == nil {
			require.Len(t, out.Results, i+1)
		} else {
			requireKind(t, misc.ErrProtocolOrder, err)
		}
	}
	close(stop)
	wg.Wait()
	require.NoError(t, decideErr)

	if out, err := s.PublishResults(); err == nil {
		require.Len(t, out.Results, n)
		require.Equal(t, fmt.Sprintf("P%d", n-1), out.WinnerID)
	} else {
		requireKind(t, misc.ErrProtocolOrder, err)
	}
}
