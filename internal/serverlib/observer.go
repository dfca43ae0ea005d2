package serverlib

import (
	"github.com/CamberLoid/sealedbid/internal/bid"
	jww "github.com/spf13/jwalterweatherman"
)

// EventKind 是会话对外通知的事件种类
type EventKind int

const (
	EventRegistered EventKind = iota
	EventClientProved
	EventMutualConfirmed
	EventRevoked
	EventBidAccepted
	EventBidRejected
	EventBiddingStatus
	EventBidsPublished
	EventResultsPublished
	EventShutdown
)

func (k EventKind) String() string {
	switch k {
	case EventRegistered:
		return "Registered"
	case EventClientProved:
		return "ClientProved"
	case EventMutualConfirmed:
		return "MutualConfirmed"
	case EventRevoked:
		return "Revoked"
	case EventBidAccepted:
		return "BidAccepted"
	case EventBidRejected:
		return "BidRejected"
	case EventBiddingStatus:
		return "BiddingStatus"
	case EventBidsPublished:
		return "BidsPublished"
	case EventResultsPublished:
		return "ResultsPublished"
	case EventShutdown:
		return "Shutdown"
	}
	return "Unknown"
}

// Event 中只有与 Kind 相关的字段有值；快照均为副本
type Event struct {
	Kind          EventKind
	ParticipantID string
	Reason        string

	Bid     *bid.Bid
	Bids    []bid.Published
	Outcome *bid.Outcome

	AuthOpen    bool
	BiddingOpen bool
}

// Observer 接收会话事件，Notify 不应阻塞
type Observer interface {
	Notify(Event)
}

// ObserverFunc 把函数用作 Observer
type ObserverFunc func(Event)

func (f ObserverFunc) Notify(e Event) { f(e) }

// LogObserver 只把事件写入日志
type LogObserver struct{}

func (LogObserver) Notify(e Event) {
	if e.Reason != "" {
		jww.INFO.Printf("event %s %s: %s", e.Kind, e.ParticipantID, e.Reason)
		return
	}
	jww.INFO.Printf("event %s %s", e.Kind, e.ParticipantID)
}

// ChannelObserver 把事件写入带缓冲的通道，通道满时丢弃事件
type ChannelObserver struct {
	C chan Event
}

func NewChannelObserver(size int) *ChannelObserver {
	return &ChannelObserver{C: make(chan Event, size)}
}

func (o *ChannelObserver) Notify(e Event) {
	select {
	case o.C <- e:
	default:
		jww.WARN.Printf("event channel full, dropping %s", e.Kind)
	}
}
