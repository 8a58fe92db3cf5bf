package client

import (
	"encoding/json"
	"strconv"
	"time"

	pkgerrors "github.com/pkg/errors"

	"github.com/sparks/battrack/pkg/accounting"
	"github.com/sparks/battrack/pkg/config"
	"github.com/sparks/battrack/pkg/engine"
	"github.com/sparks/battrack/pkg/history"
)

// ScheduleStatus mirrors the daemon's reset schedule response.
type ScheduleStatus struct {
	Expr    string    `json:"expr"`
	NextRun time.Time `json:"nextRun"`
	Running bool      `json:"running"`
}

// DaemonInfo mirrors the daemon's /daemon response.
type DaemonInfo struct {
	PID              int       `json:"pid"`
	StartedAt        time.Time `json:"startedAt"`
	Source           string    `json:"source"`
	ConfigBackend    string    `json:"configBackend"`
	ConfigPath       string    `json:"configPath"`
	LastHeartbeat    time.Time `json:"lastHeartbeat"`
	RecentHeartbeats int       `json:"recentHeartbeats"`
	Subscribers      int       `json:"subscribers"`
}

func (c *Client) GetSnapshot() (*engine.Snapshot, error) {
	ret, err := c.Get("/snapshot")
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to get snapshot")
	}

	var s engine.Snapshot
	if err := json.Unmarshal([]byte(ret), &s); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to unmarshal snapshot")
	}
	return &s, nil
}

func (c *Client) GetHistory() ([]history.Entry, error) {
	ret, err := c.Get("/history")
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to get history")
	}

	var entries []history.Entry
	if err := json.Unmarshal([]byte(ret), &entries); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to unmarshal history")
	}
	return entries, nil
}

func (c *Client) ClearHistory() (string, error) {
	return c.Delete("/history")
}

func (c *Client) GetConfig() (*config.EngineConfig, error) {
	ret, err := c.Get("/config")
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to get config")
	}

	var conf config.EngineConfig
	if err := json.Unmarshal([]byte(ret), &conf); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to unmarshal config")
	}
	return &conf, nil
}

// SetConfig sets one boolean setting by its key, e.g. battery-care.
func (c *Client) SetConfig(key string, enabled bool) (string, error) {
	return c.Put("/config/"+key, strconv.FormatBool(enabled))
}

func (c *Client) Reset(bucket accounting.Bucket) (*accounting.Account, error) {
	ret, err := c.Post("/reset/"+string(bucket), "")
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to reset %s", bucket)
	}

	var acc accounting.Account
	if err := json.Unmarshal([]byte(ret), &acc); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to unmarshal account")
	}
	return &acc, nil
}

func (c *Client) GetThresholds() (*engine.Thresholds, error) {
	ret, err := c.Get("/thresholds")
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to get thresholds")
	}

	var th engine.Thresholds
	if err := json.Unmarshal([]byte(ret), &th); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to unmarshal thresholds")
	}
	return &th, nil
}

func (c *Client) GetBrightness() (int, error) {
	ret, err := c.Get("/brightness")
	if err != nil {
		return 0, pkgerrors.Wrapf(err, "failed to get brightness")
	}
	pct, err := strconv.Atoi(ret)
	if err != nil {
		return 0, pkgerrors.Wrapf(err, "failed to unmarshal brightness")
	}
	return pct, nil
}

func (c *Client) SetBrightness(pct int) (string, error) {
	return c.Put("/brightness", strconv.Itoa(pct))
}

func (c *Client) GetResetSchedule() (*ScheduleStatus, error) {
	ret, err := c.Get("/reset-schedule")
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to get reset schedule")
	}
	return parseScheduleStatus(ret)
}

// SetResetSchedule replaces the cron expression. An empty expression
// disables scheduled resets.
func (c *Client) SetResetSchedule(expr string) (*ScheduleStatus, error) {
	payload, err := json.Marshal(expr)
	if err != nil {
		return nil, err
	}
	ret, err := c.Put("/reset-schedule", string(payload))
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to set reset schedule")
	}
	return parseScheduleStatus(ret)
}

func (c *Client) SkipResetSchedule() (*ScheduleStatus, error) {
	ret, err := c.Post("/reset-schedule/skip", "")
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to skip scheduled reset")
	}
	return parseScheduleStatus(ret)
}

func (c *Client) GetDaemonInfo() (*DaemonInfo, error) {
	ret, err := c.Get("/daemon")
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to get daemon info")
	}

	var info DaemonInfo
	if err := json.Unmarshal([]byte(ret), &info); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to unmarshal daemon info")
	}
	return &info, nil
}

func (c *Client) GetVersion() (string, error) {
	ret, err := c.Get("/version")
	if err != nil {
		return "", pkgerrors.Wrapf(err, "failed to get version")
	}

	var v string
	if err := json.Unmarshal([]byte(ret), &v); err != nil {
		return "", pkgerrors.Wrapf(err, "failed to unmarshal version")
	}
	return v, nil
}

func parseScheduleStatus(resp string) (*ScheduleStatus, error) {
	var st ScheduleStatus
	if err := json.Unmarshal([]byte(resp), &st); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to unmarshal reset schedule")
	}
	return &st, nil
}
