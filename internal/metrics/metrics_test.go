package metrics_test

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/scrollstate/internal/metrics"
)

func TestCollector(t *testing.T) {
	c := metrics.New("")

	c.ObserveCommit(2*time.Millisecond, 3)
	c.ObserveCommit(time.Millisecond, 5)
	c.ObserveSkippedCommit()
	c.ObserveApplied(4)
	c.SetTreeSize(7, 2, 1)

	expected := `
# HELP scrollstate_tree_commits_total Commit attempts on the scrolling state tree, by result.
# TYPE scrollstate_tree_commits_total counter
scrollstate_tree_commits_total{result="committed"} 2
scrollstate_tree_commits_total{result="skipped"} 1
`
	require.NoError(t, testutil.GatherAndCompare(c.Registry(), strings.NewReader(expected), "scrollstate_tree_commits_total"))

	summary, err := c.Summary()
	require.NoError(t, err)
	assert.Equal(t, 2.0, summary["scrollstate_tree_commits_total:committed"])
	assert.Equal(t, 1.0, summary["scrollstate_tree_commits_total:skipped"])
	assert.Equal(t, 2.0, summary["scrollstate_tree_committed_nodes"])
	assert.Equal(t, 1.0, summary["scrollstate_scrolling_tree_applied_commits_total"])
	assert.Equal(t, 4.0, summary["scrollstate_scrolling_tree_layer_reattachments_total"])
	assert.Equal(t, 7.0, summary["scrollstate_tree_nodes"])
	assert.Equal(t, 2.0, summary["scrollstate_tree_scrolling_nodes"])
	assert.Equal(t, 1.0, summary["scrollstate_tree_unparented_subtrees"])
}

func TestCollector_SeparateRegistries(t *testing.T) {
	a := metrics.New("a")
	b := metrics.New("a")
	a.ObserveSkippedCommit()

	count, err := testutil.GatherAndCount(b.Registry(), "a_tree_commits_total")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestCollector_Serve(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"))

	c := metrics.New("")
	c.SetTreeSize(3, 1, 0)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Serve(ctx, addr, zaptest.NewLogger(t)) }()

	client := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}
	var body string
	require.Eventually(t, func() bool {
		resp, err := client.Get(fmt.Sprintf("http://%s/metrics", addr))
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return false
		}
		body = string(data)
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)
	assert.Contains(t, body, "scrollstate_tree_nodes 3")

	cancel()
	require.NoError(t, <-done)
}
