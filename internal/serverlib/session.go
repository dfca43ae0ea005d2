// 包 serverlib 包含拍卖服务端的会话状态机
package serverlib

import (
	"sync"

	"github.com/CamberLoid/sealedbid/internal/bid"
	"github.com/CamberLoid/sealedbid/internal/bignum"
	"github.com/CamberLoid/sealedbid/internal/db"
	"github.com/CamberLoid/sealedbid/internal/ffs"
	"github.com/CamberLoid/sealedbid/internal/misc"
	"github.com/CamberLoid/sealedbid/internal/participant"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
)

// Config 是会话的固定参数
type Config struct {
	// Rounds 是每个方向的 FFS 轮数 k
	Rounds int
	// AllowedIDs 为空时允许任何参与方
	AllowedIDs []string
	// AuthOpen、BiddingOpen 是两个窗口的初始状态
	AuthOpen    bool
	BiddingOpen bool
}

// Session 是一场拍卖的服务端状态
//
// mu 保护参与方表、窗口和开标结果；处理单个参与方的请求时持有 mu 的读锁和该参与方记录的锁，
// 不同参与方的请求可以并发。Shutdown 持有写锁，因此与进行中的请求互斥。
type Session struct {
	ID     uuid.UUID
	keys   *ServerKeys
	rounds int
	src    *bignum.EntropySource
	store  db.Store
	obs    Observer

	mu           sync.RWMutex
	participants map[string]*participant.Record
	allowed      map[string]bool
	authOpen     bool
	biddingOpen  bool
	closed       bool

	bids      bid.Log
	outcomeMu sync.Mutex
	outcome   *bid.Outcome
}

// NewSession 创建会话；store 为 nil 时使用内存存储，obs 为 nil 时只写日志
func NewSession(cfg Config, keys *ServerKeys, src *bignum.EntropySource, store db.Store, obs Observer) (*Session, error) {
	if !ffs.ValidRounds(cfg.Rounds) {
		return nil, errors.Wrapf(misc.ErrInvalidParameter, "rounds must be in [1, %d], got %d", ffs.MaxRounds, cfg.Rounds)
	}
	if keys == nil || keys.Params == nil || keys.RSA == nil || keys.ZK == nil {
		return nil, errors.Wrap(misc.ErrInvalidParameter, "incomplete server keys")
	}
	if err := keys.Params.Validate(); err != nil {
		return nil, err
	}
	if store == nil {
		store = db.NewMapStore()
	}
	if obs == nil {
		obs = LogObserver{}
	}
	s := &Session{
		ID:           uuid.New(),
		keys:         keys,
		rounds:       cfg.Rounds,
		src:          src,
		store:        store,
		obs:          obs,
		participants: make(map[string]*participant.Record),
		authOpen:     cfg.AuthOpen,
		biddingOpen:  cfg.BiddingOpen,
	}
	s.setAllowed(cfg.AllowedIDs)
	jww.INFO.Printf("Session %s started, k = %d", s.ID, s.rounds)
	return s, nil
}

func (s *Session) Keys() *ServerKeys { return s.keys }

func (s *Session) Rounds() int { return s.rounds }

// --- 窗口与名单 --- //

func (s *Session) setAllowed(ids []string) {
	if len(ids) == 0 {
		s.allowed = nil
		return
	}
	s.allowed = make(map[string]bool, len(ids))
	for _, id := range ids {
		s.allowed[id] = true
	}
}

// SetAllowedIDs 替换允许参与的名单，空名单表示不限制
func (s *Session) SetAllowedIDs(ids []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setAllowed(ids)
	jww.INFO.Printf("Allowed participants updated: %v", ids)
}

// AllowedIDs 返回名单，未限制时为 nil
func (s *Session) AllowedIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.allowed == nil {
		return nil
	}
	ids := make([]string, 0, len(s.allowed))
	for id := range s.allowed {
		ids = append(ids, id)
	}
	return ids
}

// SetAuthWindow 开关认证窗口，已完成的认证不受影响
func (s *Session) SetAuthWindow(open bool) {
	s.mu.Lock()
	s.authOpen = open
	auth, bidding := s.authOpen, s.biddingOpen
	s.mu.Unlock()
	s.obs.Notify(Event{Kind: EventBiddingStatus, AuthOpen: auth, BiddingOpen: bidding})
}

// SetBidding 开关出价窗口；关闭出价不撤销已有认证
func (s *Session) SetBidding(open bool) {
	s.mu.Lock()
	s.biddingOpen = open
	auth, bidding := s.authOpen, s.biddingOpen
	s.mu.Unlock()
	jww.INFO.Printf("Bidding window open = %v", open)
	s.obs.Notify(Event{Kind: EventBiddingStatus, AuthOpen: auth, BiddingOpen: bidding})
}

// Windows 返回两个窗口的当前状态
func (s *Session) Windows() (authOpen, biddingOpen bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.authOpen, s.biddingOpen
}

// --- 查询 --- //

// State 返回参与方当前阶段，未知参与方为 Unregistered
func (s *Session) State(id string) participant.State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.participants[id]
	if !ok {
		return participant.Unregistered
	}
	rec.Lock()
	defer rec.Unlock()
	return rec.State(s.biddingOpen)
}

// withRecord 在持有读锁和记录锁时调用 f；会话已关闭或参与方未注册时返回 NotAuthorized
func (s *Session) withRecord(id string, f func(rec *participant.Record) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return misc.Reject(misc.ErrNotAuthorized, "session is closed")
	}
	rec, ok := s.participants[id]
	if !ok {
		return misc.Reject(misc.ErrNotAuthorized, "participant %q is not registered", id)
	}
	rec.Lock()
	defer rec.Unlock()
	return f(rec)
}

// persist 把参与方当前阶段写入审计日志，调用方持有记录锁
func (s *Session) persist(rec *participant.Record) {
	row := db.ParticipantRow{
		ID:           rec.ID,
		SignaturePub: rec.SignaturePub,
		ZKPub:        rec.ZKPub,
		State:        rec.State(s.biddingOpen).String(),
		RegisteredAt: rec.RegisteredAt.Unix(),
	}
	if err := s.store.PutParticipant(row); err != nil {
		jww.ERROR.Printf("persist participant %q: %v", rec.ID, err)
	}
}

// --- 关闭 --- //

// Shutdown 丢弃全部参与方状态、出价和开标结果
// 与所有进行中的请求互斥；之后的请求都返回 NotAuthorized。审计日志保留。
func (s *Session) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.participants = make(map[string]*participant.Record)
	s.bids.Reset()
	s.outcomeMu.Lock()
	s.outcome = nil
	s.outcomeMu.Unlock()
	jww.INFO.Printf("Session %s shut down", s.ID)
	s.obs.Notify(Event{Kind: EventShutdown})
}

// Closed 表示会话已关闭
func (s *Session) Closed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}
