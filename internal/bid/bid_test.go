package bid_test

import (
	"fmt"
	"math/big"
	"testing"

	"github.com/CamberLoid/sealedbid/internal/bid"
	"github.com/kr/pretty"
)

func identity(c *big.Int) (*big.Int, error) { return c, nil }

func newBid(id string, v int64) *bid.Bid {
	return bid.New(id, big.NewInt(v), big.NewInt(1), big.NewInt(2), big.NewInt(3))
}

func TestMessage(t *testing.T) {
	if got := string(bid.Message(big.NewInt(12345))); got != "y=12345" {
		t.Errorf("got %q", got)
	}
}

func TestLatestKeepsFirstSeenOrder(t *testing.T) {
	var log bid.Log
	log.Append(newBid("alice", 100))
	log.Append(newBid("bob", 200))
	log.Append(newBid("alice", 300))
	log.Append(newBid("carol", 50))

	latest := log.Latest()
	var got []string
	for _, b := range latest {
		got = append(got, fmt.Sprintf("%s=%s", b.ParticipantID, b.Ciphertext))
	}
	want := []string{"alice=300", "bob=200", "carol=50"}
	if diff := pretty.Diff(want, got); len(diff) > 0 {
		t.Errorf("latest bids differ: %v", diff)
	}
	if log.Len() != 4 || len(log.All()) != 4 {
		t.Errorf("log should keep every accepted bid")
	}

	// 返回的是副本
	latest[0].ParticipantID = "mallory"
	if log.Latest()[0].ParticipantID != "alice" {
		t.Errorf("caller mutated the log")
	}

	log.Reset()
	if log.Len() != 0 {
		t.Errorf("reset left %d entries", log.Len())
	}
}

func TestDecideHighestWins(t *testing.T) {
	out := bid.Decide([]*bid.Bid{newBid("a", 500), newBid("b", 700)}, identity)
	if out.WinnerID != "b" || !out.Results[1].Winner || out.Results[0].Winner {
		t.Errorf("unexpected outcome: %# v", pretty.Formatter(out))
	}
}

func TestDecideTieGoesToFirst(t *testing.T) {
	out := bid.Decide([]*bid.Bid{newBid("a", 10), newBid("b", 700), newBid("c", 700)}, identity)
	if out.WinnerID != "b" {
		t.Errorf("tie should go to the first bidder, got %q", out.WinnerID)
	}
}

func TestDecideSkipsUndecryptable(t *testing.T) {
	decrypt := func(c *big.Int) (*big.Int, error) {
		if c.Int64() > 1000 {
			return nil, fmt.Errorf("out of range")
		}
		return c, nil
	}
	out := bid.Decide([]*bid.Bid{newBid("a", 5000), newBid("b", 1)}, decrypt)
	if out.WinnerID != "b" || out.Results[0].Value != nil {
		t.Errorf("unexpected outcome: %# v", pretty.Formatter(out))
	}

	if out := bid.Decide(nil, identity); out.WinnerID != "" || len(out.Results) != 0 {
		t.Errorf("empty auction produced a winner")
	}
}

func TestPublishHidesValue(t *testing.T) {
	b := newBid("a", 42)
	b.Value = big.NewInt(42)
	pub := bid.Publish([]*bid.Bid{b})
	if len(pub) != 1 || pub[0].Ciphertext.Int64() != 42 || pub[0].ParticipantID != "a" {
		t.Errorf("unexpected publication %# v", pretty.Formatter(pub))
	}
}

func TestLatestAtReportsLogLength(t *testing.T) {
	var log bid.Log
	log.Append(newBid("alice", 1))
	log.Append(newBid("alice", 2))
	latest, seen := log.LatestAt()
	if len(latest) != 1 || seen != 2 {
		t.Errorf("got %d latest bids over %d entries", len(latest), seen)
	}
	log.Append(newBid("bob", 3))
	if _, seen = log.LatestAt(); seen != log.Len() {
		t.Errorf("snapshot length %d, log length %d", seen, log.Len())
	}
}
