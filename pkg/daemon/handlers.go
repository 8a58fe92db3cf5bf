package daemon

import (
	"errors"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/sparks/battrack/pkg/accounting"
	"github.com/sparks/battrack/pkg/config"
	"github.com/sparks/battrack/pkg/version"
)

// Info describes the running daemon.
type Info struct {
	PID              int       `json:"pid"`
	StartedAt        time.Time `json:"startedAt"`
	Source           string    `json:"source"`
	ConfigBackend    string    `json:"configBackend"`
	ConfigPath       string    `json:"configPath"`
	LastHeartbeat    time.Time `json:"lastHeartbeat"`
	RecentHeartbeats int       `json:"recentHeartbeats"`
	Subscribers      int       `json:"subscribers"`
}

// Router returns the HTTP API.
func (d *Daemon) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(ginLogger(logrus.StandardLogger()))
	router.GET("/snapshot", d.getSnapshot)
	router.GET("/history", d.getHistory)
	router.DELETE("/history", d.clearHistory)
	router.GET("/config", d.getConfig)
	router.PUT("/config/:key", d.setConfig)
	router.POST("/reset/:bucket", d.reset)
	router.GET("/thresholds", d.getThresholds)
	router.GET("/brightness", d.getBrightness)
	router.PUT("/brightness", d.setBrightness)
	router.GET("/reset-schedule", d.getResetSchedule)
	router.PUT("/reset-schedule", d.setResetSchedule)
	router.POST("/reset-schedule/skip", d.skipResetSchedule)
	router.GET("/events", d.streamEvents)
	router.GET("/daemon", d.getInfo)
	router.GET("/version", getVersion)

	return router
}

func abort(c *gin.Context, code int, err error) {
	c.IndentedJSON(code, err.Error())
	_ = c.AbortWithError(code, err)
}

func (d *Daemon) getSnapshot(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, d.engine.Snapshot())
}

func (d *Daemon) getHistory(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, d.engine.History())
}

func (d *Daemon) clearHistory(c *gin.Context) {
	d.engine.ClearHistory()
	c.IndentedJSON(http.StatusOK, "history cleared")
}

func (d *Daemon) getConfig(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, d.engine.Config())
}

func (d *Daemon) setConfig(c *gin.Context) {
	key := c.Param("key")

	var b bool
	if err := c.BindJSON(&b); err != nil {
		abort(c, http.StatusBadRequest, err)
		return
	}

	if err := d.engine.Set(key, b); err != nil {
		if errors.Is(err, config.ErrUnknownKey) {
			abort(c, http.StatusNotFound, err)
			return
		}
		logrus.Errorf("saveConfig failed: %v", err)
		abort(c, http.StatusInternalServerError, err)
		return
	}

	logrus.Infof("set %s to %t", key, b)

	c.IndentedJSON(http.StatusCreated, "ok")
}

func (d *Daemon) reset(c *gin.Context) {
	bucket, err := accounting.ParseBucket(c.Param("bucket"))
	if err != nil {
		abort(c, http.StatusBadRequest, err)
		return
	}

	if err := d.engine.Reset(bucket); err != nil {
		abort(c, http.StatusInternalServerError, err)
		return
	}

	c.IndentedJSON(http.StatusCreated, d.engine.Snapshot().Account)
}

func (d *Daemon) getThresholds(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, d.engine.Thresholds())
}

func (d *Daemon) getBrightness(c *gin.Context) {
	pct, err := d.brightness.Get()
	if err != nil {
		logrus.Errorf("getBrightness failed: %v", err)
		abort(c, http.StatusInternalServerError, err)
		return
	}

	c.IndentedJSON(http.StatusOK, pct)
}

func (d *Daemon) setBrightness(c *gin.Context) {
	var pct int
	if err := c.BindJSON(&pct); err != nil {
		abort(c, http.StatusBadRequest, err)
		return
	}

	if pct < 0 || pct > 100 {
		abort(c, http.StatusBadRequest, errors.New("brightness must be between 0 and 100"))
		return
	}

	if err := d.brightness.Set(pct); err != nil {
		logrus.Errorf("setBrightness failed: %v", err)
		code := http.StatusInternalServerError
		if errors.Is(err, os.ErrPermission) {
			code = http.StatusForbidden
		}
		abort(c, code, err)
		return
	}

	logrus.Infof("set brightness to %d%%", pct)

	c.IndentedJSON(http.StatusCreated, "ok")
}

func (d *Daemon) getResetSchedule(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, d.scheduler.Status())
}

func (d *Daemon) setResetSchedule(c *gin.Context) {
	var expr string
	if err := c.BindJSON(&expr); err != nil {
		abort(c, http.StatusBadRequest, err)
		return
	}

	if err := d.scheduler.Schedule(expr); err != nil {
		abort(c, http.StatusBadRequest, err)
		return
	}

	st := d.scheduler.Status()
	logrus.WithFields(logrus.Fields{
		"cron":    st.Expr,
		"nextRun": st.NextRun,
	}).Info("reset schedule updated")

	c.IndentedJSON(http.StatusCreated, st)
}

func (d *Daemon) skipResetSchedule(c *gin.Context) {
	if err := d.scheduler.Skip(); err != nil {
		abort(c, http.StatusBadRequest, err)
		return
	}

	c.IndentedJSON(http.StatusCreated, d.scheduler.Status())
}

// streamEvents writes hub events as server-sent events until the client
// goes away or the daemon shuts down.
func (d *Daemon) streamEvents(c *gin.Context) {
	ch := d.hub.Subscribe()
	defer d.hub.Unsubscribe(ch)

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")

	// Send the current state first so a new subscriber does not wait a tick.
	c.SSEvent("snapshot", d.engine.Snapshot())
	c.Writer.Flush()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-c.Request.Context().Done():
			return false
		case <-d.streamsDone:
			return false
		case ev, ok := <-ch:
			if !ok {
				return false
			}
			c.SSEvent(ev.Name, string(ev.Data))
			return true
		}
	})
}

func (d *Daemon) getInfo(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, Info{
		PID:              os.Getpid(),
		StartedAt:        d.startedAt,
		Source:           d.opts.Daemon.Source,
		ConfigBackend:    d.opts.Storage.ConfigBackend,
		ConfigPath:       d.opts.Storage.ConfigPath,
		LastHeartbeat:    d.heartbeats.GetLastRecord(),
		RecentHeartbeats: d.heartbeats.GetRecordsIn(time.Minute),
		Subscribers:      d.hub.Subscribers(),
	})
}

func getVersion(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, version.Version)
}
