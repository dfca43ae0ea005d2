package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/CamberLoid/sealedbid/internal/bignum"
	"github.com/CamberLoid/sealedbid/internal/participant"
	"github.com/CamberLoid/sealedbid/internal/serverlib"
	"github.com/stretchr/testify/require"
)

func newTestSession(t *testing.T) (*httptest.Server, *serverlib.Session) {
	src := bignum.NewSeededEntropySource([]byte("cmd-client-test"))
	keys, err := serverlib.GenerateServerKeys(context.Background(), 64, src)
	require.NoError(t, err)
	session, err := serverlib.NewSession(serverlib.Config{Rounds: 4, AuthOpen: true, BiddingOpen: true}, keys, src, nil, nil)
	require.NoError(t, err)

	mux := http.NewServeMux()
	ep := serverlib.NewEndpoint(session)
	ep.Routes(mux)
	ep.AdminRoutes(mux, "")
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts, session
}

func TestHashCommand(t *testing.T) {
	require.NoError(t, newApp().Run([]string{"sealedbid", "hash", "message digest"}))
}

func TestJoinCommand(t *testing.T) {
	ts, session := newTestSession(t)

	err := newApp().Run([]string{"sealedbid", "join",
		"--server", ts.URL, "--id", "alice", "--db", ":memory:", "--value", "42", "--disclose"})
	require.NoError(t, err)
	require.Equal(t, participant.CanBid, session.State("alice"))

	bids := session.Bids()
	require.Len(t, bids, 1)
	require.Equal(t, int64(42), bids[0].Claimed.Int64())

	require.NoError(t, newApp().Run([]string{"sealedbid", "state", "--server", ts.URL, "--id", "alice"}))
	require.NoError(t, newApp().Run([]string{"sealedbid", "bids", "--server", ts.URL}))

	// 尚未开标
	require.Error(t, newApp().Run([]string{"sealedbid", "results", "--server", ts.URL}))
	_, err = session.DecideWinner()
	require.NoError(t, err)
	require.NoError(t, newApp().Run([]string{"sealedbid", "results", "--server", ts.URL}))
}

func TestJoinCommandTampered(t *testing.T) {
	ts, session := newTestSession(t)

	err := newApp().Run([]string{"sealedbid", "join",
		"--server", ts.URL, "--id", "mallory", "--db", ":memory:", "--value", "10", "--tamper", "1000"})
	require.Error(t, err)
	require.Empty(t, session.Bids())
}

func TestJoinCommandRejectsBadValue(t *testing.T) {
	err := newApp().Run([]string{"sealedbid", "join", "--id", "bob", "--db", ":memory:", "--value", "ten"})
	require.Error(t, err)
}

func TestGlobalFlags(t *testing.T) {
	require.NoError(t, newApp().Run([]string{"sealedbid", "--version"}))
	require.NoError(t, newApp().Run([]string{"sealedbid", "-v"}))
	require.NoError(t, newApp().Run([]string{"sealedbid", "-V", "hash", "abc"}))
	require.NoError(t, newApp().Run([]string{"sealedbid", "--verbose", "hash", "abc"}))
}
