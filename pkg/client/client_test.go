package client

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sparks/battrack/pkg/accounting"
	"github.com/sparks/battrack/pkg/engine"
	"github.com/sparks/battrack/pkg/events"
	"github.com/sparks/battrack/pkg/threshold"
)

// serve starts router on a unix socket and returns a client for it.
func serve(t *testing.T, router http.Handler) *Client {
	t.Helper()
	sock := filepath.Join(t.TempDir(), "d.sock")

	l, err := net.Listen("unix", sock)
	require.NoError(t, err)

	srv := httptest.NewUnstartedServer(router)
	srv.Listener = l
	srv.Start()
	t.Cleanup(srv.Close)

	return NewClient(sock)
}

func newRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return gin.New()
}

func TestClient_DaemonNotRunning(t *testing.T) {
	c := NewClient(filepath.Join(t.TempDir(), "missing.sock"))

	_, err := c.Get("/snapshot")
	assert.ErrorIs(t, err, ErrDaemonNotRunning)

	_, err = c.GetSnapshot()
	assert.ErrorIs(t, err, ErrDaemonNotRunning)
}

func TestDialErrorClassification(t *testing.T) {
	opErr := func(errno syscall.Errno) error {
		return &net.OpError{Op: "dial", Net: "unix", Err: os.NewSyscallError("connect", errno)}
	}

	tests := []struct {
		name       string
		err        error
		notExist   bool
		permission bool
		refused    bool
	}{
		{"missing socket", opErr(syscall.ENOENT), true, false, false},
		{"not our socket", opErr(syscall.EACCES), false, true, false},
		{"stale socket", opErr(syscall.ECONNREFUSED), false, false, true},
		{"other", opErr(syscall.ETIMEDOUT), false, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.notExist, isNotExist(tt.err))
			assert.Equal(t, tt.permission, isPermission(tt.err))
			assert.Equal(t, tt.refused, isConnRefused(tt.err))
		})
	}
}

func TestClient_NotFound(t *testing.T) {
	c := serve(t, newRouter())

	_, err := c.SetConfig("no-such-key", true)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestClient_ServerError(t *testing.T) {
	r := newRouter()
	r.GET("/config", func(c *gin.Context) {
		c.IndentedJSON(http.StatusInternalServerError, "disk on fire")
	})
	c := serve(t, r)

	_, err := c.GetConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
	assert.Contains(t, err.Error(), "disk on fire")
}

func TestClient_GetSnapshot(t *testing.T) {
	want := engine.Snapshot{
		Available: true,
		Remaining: "1:30",
		Account: accounting.Account{
			TotalInUse:     90 * time.Second,
			TotalOnBattery: 60 * time.Second,
			TotalPluggedIn: 30 * time.Second,
		},
		ThresholdState: threshold.Low,
		TakenAt:        time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	r := newRouter()
	r.GET("/snapshot", func(c *gin.Context) {
		c.IndentedJSON(http.StatusOK, want)
	})
	c := serve(t, r)

	got, err := c.GetSnapshot()
	require.NoError(t, err)
	assert.True(t, got.Available)
	assert.Equal(t, want.Account, got.Account)
	assert.Equal(t, threshold.Low, got.ThresholdState)
	assert.True(t, want.TakenAt.Equal(got.TakenAt))
}

func TestClient_SetConfig(t *testing.T) {
	var gotKey, gotBody string
	r := newRouter()
	r.PUT("/config/:key", func(c *gin.Context) {
		gotKey = c.Param("key")
		b, _ := io.ReadAll(c.Request.Body)
		gotBody = string(b)
		c.IndentedJSON(http.StatusCreated, "ok")
	})
	c := serve(t, r)

	ret, err := c.SetConfig("battery-care", false)
	require.NoError(t, err)
	assert.Equal(t, `"ok"`, ret)
	assert.Equal(t, "battery-care", gotKey)
	assert.Equal(t, "false", gotBody)
}

func TestClient_Reset(t *testing.T) {
	var gotBucket string
	r := newRouter()
	r.POST("/reset/:bucket", func(c *gin.Context) {
		gotBucket = c.Param("bucket")
		c.IndentedJSON(http.StatusCreated, accounting.Account{})
	})
	c := serve(t, r)

	acc, err := c.Reset(accounting.BucketBattery)
	require.NoError(t, err)
	assert.Equal(t, accounting.Account{}, *acc)
	assert.Equal(t, string(accounting.BucketBattery), gotBucket)
}

func TestClient_Brightness(t *testing.T) {
	level := 40
	r := newRouter()
	r.GET("/brightness", func(c *gin.Context) {
		c.IndentedJSON(http.StatusOK, level)
	})
	r.PUT("/brightness", func(c *gin.Context) {
		if err := c.BindJSON(&level); err != nil {
			return
		}
		c.IndentedJSON(http.StatusCreated, "ok")
	})
	c := serve(t, r)

	_, err := c.SetBrightness(75)
	require.NoError(t, err)

	got, err := c.GetBrightness()
	require.NoError(t, err)
	assert.Equal(t, 75, got)
}

func TestClient_ResetSchedule(t *testing.T) {
	var expr string
	r := newRouter()
	r.PUT("/reset-schedule", func(c *gin.Context) {
		if err := c.BindJSON(&expr); err != nil {
			return
		}
		c.IndentedJSON(http.StatusCreated, gin.H{"expr": expr, "running": true})
	})
	c := serve(t, r)

	st, err := c.SetResetSchedule("0 0 * * *")
	require.NoError(t, err)
	assert.Equal(t, "0 0 * * *", expr)
	assert.Equal(t, "0 0 * * *", st.Expr)
	assert.True(t, st.Running)
}

func TestClient_GetVersion(t *testing.T) {
	r := newRouter()
	r.GET("/version", func(c *gin.Context) {
		c.IndentedJSON(http.StatusOK, "v1.2.3")
	})
	c := serve(t, r)

	v, err := c.GetVersion()
	require.NoError(t, err)
	assert.Equal(t, "v1.2.3", v)
}

func TestReadEvents(t *testing.T) {
	body := strings.Join([]string{
		": keepalive",
		"event:snapshot",
		`data:{"available":true}`,
		"",
		"event: account.reset",
		`data: {"bucket":"all",`,
		`data: "source":"api"}`,
		"",
		"",
		"data:plain",
		"",
		"",
		"event:truncated",
		"data:{}",
	}, "\n")

	ch := make(chan events.Event, 8)
	require.NoError(t, readEvents(context.Background(), strings.NewReader(body), ch))
	close(ch)

	var got []events.Event
	for ev := range ch {
		got = append(got, ev)
	}
	require.Len(t, got, 3)
	assert.Equal(t, "snapshot", got[0].Name)
	assert.JSONEq(t, `{"available":true}`, string(got[0].Data))
	assert.Equal(t, "account.reset", got[1].Name)
	assert.JSONEq(t, `{"bucket":"all","source":"api"}`, string(got[1].Data))
	assert.Equal(t, "message", got[2].Name)
	assert.Equal(t, "plain", string(got[2].Data))
}

func TestClient_SubscribeEvents(t *testing.T) {
	r := newRouter()
	r.GET("/events", func(c *gin.Context) {
		c.SSEvent(events.Snapshot, engine.Snapshot{Available: true})
		c.SSEvent(events.AccountReset, `{"bucket":"battery","source":"api","ts":1}`)
		c.Writer.Flush()
		<-c.Request.Context().Done()
	})
	c := serve(t, r)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := c.SubscribeEvents(ctx)
	require.NoError(t, err)

	var first, second events.Event
	select {
	case first = <-ch:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for first event")
	}
	select {
	case second = <-ch:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for second event")
	}

	snap, err := events.DecodeAs[engine.Snapshot](first)
	require.NoError(t, err)
	assert.True(t, snap.Available)

	assert.Equal(t, events.AccountReset, second.Name)
	reset, err := events.DecodeAs[events.AccountResetEvent](second)
	require.NoError(t, err)
	assert.Equal(t, "battery", reset.Bucket)

	cancel()
	assert.Eventually(t, func() bool {
		select {
		case _, ok := <-ch:
			return !ok
		default:
			return false
		}
	}, 5*time.Second, 10*time.Millisecond)
}
