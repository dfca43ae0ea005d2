package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/CamberLoid/sealedbid/internal/bignum"
	"github.com/CamberLoid/sealedbid/internal/restfulpayload"
	"github.com/CamberLoid/sealedbid/internal/serverlib"
	"github.com/stretchr/testify/require"
)

var (
	keysOnce sync.Once
	testKeys *serverlib.ServerKeys
	keysErr  error
)

func newTestServer(t *testing.T, token string) (*httptest.Server, *serverlib.Session) {
	src := bignum.NewSeededEntropySource([]byte("cmd-server-test"))
	keysOnce.Do(func() {
		testKeys, keysErr = serverlib.GenerateServerKeys(context.Background(), 64, src)
	})
	require.NoError(t, keysErr)

	session, err := serverlib.NewSession(serverlib.Config{Rounds: 4, AuthOpen: true}, testKeys, src, nil, nil)
	require.NoError(t, err)
	ts := httptest.NewServer(NewMux(serverlib.NewEndpoint(session), token))
	t.Cleanup(ts.Close)
	return ts, session
}

func TestVersion(t *testing.T) {
	ts, _ := newTestServer(t, "")
	resp, err := http.Get(ts.URL + restfulpayload.VersionEndpoint)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	v := new(restfulpayload.Version)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
	require.Equal(t, restfulpayload.StatusOK, v.Status)
	require.Equal(t, ConfigVersion, v.Version)
}

func TestNotFound(t *testing.T) {
	ts, _ := newTestServer(t, "")
	resp, err := http.Get(ts.URL + "/no/such/thing")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	f := new(restfulpayload.Failure)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(f))
	require.Equal(t, restfulpayload.StatusFailed, f.Status)
	require.Contains(t, f.Err, "/no/such/thing")
}

func TestAdminTokenGuard(t *testing.T) {
	ts, session := newTestServer(t, "secret")
	body := `{"biddingOpen": true}`

	resp, err := http.Post(ts.URL+restfulpayload.AdminWindowsEndpoint, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	_, bidding := session.Windows()
	require.False(t, bidding)

	req, err := http.NewRequest(http.MethodPost, ts.URL+restfulpayload.AdminWindowsEndpoint, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("X-Admin-Token", "secret")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_, bidding = session.Windows()
	require.True(t, bidding)
}

func TestWelcomeAdvertisesSession(t *testing.T) {
	ts, session := newTestServer(t, "")
	resp, err := http.Get(ts.URL + restfulpayload.WelcomeEndpoint)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	w := new(restfulpayload.Welcome)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(w))
	require.Equal(t, session.ID, w.SessionID)
	require.Equal(t, 4, w.Rounds)
	require.Equal(t, 0, w.N.Int().Cmp(testKeys.RSA.N))
}

func TestLoggerInitAcceptsLevels(t *testing.T) {
	for _, l := range []string{"trace", "debug", "info", "WARN", "error", "bogus"} {
		loggerInit(l)
	}
	loggerInit(DefaultLogLevel)
}
