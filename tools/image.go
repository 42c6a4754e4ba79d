package tools

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/m4xw311/bachmcp/config"
	"github.com/m4xw311/bachmcp/errors"
)

var imageViews = map[string]bool{"raw": true, "line": true, "multiline": true, "scroll": true}

// ExportImageTool asks the patch to render the score as a PNG.
type ExportImageTool struct {
	engine   *engine
	fsAccess *config.FilesystemAccess
}

func (t *ExportImageTool) Name() string { return "exportimage" }
func (t *ExportImageTool) Description() string {
	return "Export the score as a PNG image. Without a filename the patch opens a save dialog."
}

func (t *ExportImageTool) Params() []Param {
	return []Param{
		{Name: "filename", Type: String, Description: "Target file path, e.g. /tmp/score.png."},
		{Name: "view", Type: String, Description: "raw, line, multiline or scroll."},
		{Name: "mspersystem", Type: Number, Description: "System length in ms for multiline and scroll."},
		{Name: "adaptwidth", Type: Integer, Description: "0 rescales zoom to the object width, 1 resizes the object."},
		{Name: "dpi", Type: Integer, Description: "Image resolution (default 72)."},
		{Name: "systemvshift", Type: Integer, Description: "Vertical gap between systems in pixels."},
	}
}

func (t *ExportImageTool) Execute(ctx context.Context, raw map[string]any) (string, error) {
	a := args(raw)
	parts := []string{"exportimage"}

	filename, err := a.str("filename", "")
	if err != nil {
		return "", err
	}
	if filename != "" {
		if strings.ContainsAny(filename, " \t[]") {
			return "", errors.New("filename '%s' must not contain spaces or brackets", filename)
		}
		if err := checkWritePath(filename, t.fsAccess); err != nil {
			return "", err
		}
		parts = append(parts, filename)
	}

	view, err := a.str("view", "")
	if err != nil {
		return "", err
	}
	if view != "" {
		view = strings.ToLower(view)
		if !imageViews[view] {
			return "", errors.New("view must be raw, line, multiline or scroll, got '%s'", view)
		}
		parts = append(parts, "@view "+view)
	}
	if a.has("mspersystem") {
		ms, err := a.number("mspersystem", 0)
		if err != nil {
			return "", err
		}
		if ms <= 0 {
			return "", errors.New("mspersystem must be > 0")
		}
		parts = append(parts, "@mspersystem "+formatFloat(ms))
	}
	if a.has("adaptwidth") {
		v, err := a.integer("adaptwidth", 0)
		if err != nil {
			return "", err
		}
		if v != 0 && v != 1 {
			return "", errors.New("adaptwidth must be 0 or 1")
		}
		parts = append(parts, fmt.Sprintf("@adaptwidth %d", v))
	}
	if a.has("dpi") {
		v, err := a.integer("dpi", 0)
		if err != nil {
			return "", err
		}
		if v <= 0 {
			return "", errors.New("dpi must be > 0")
		}
		parts = append(parts, fmt.Sprintf("@dpi %d", v))
	}
	if a.has("systemvshift") {
		v, err := a.integer("systemvshift", 0)
		if err != nil {
			return "", err
		}
		if v < 0 {
			return "", errors.New("systemvshift must not be negative")
		}
		parts = append(parts, fmt.Sprintf("@systemvshift %d", v))
	}
	return t.engine.send(strings.Join(parts, " "))
}

// ScoreSnapshotTool has the patch export the score as a single-line PNG,
// waits for the file to appear and returns it base64 encoded.
type ScoreSnapshotTool struct {
	engine  *engine
	dir     string
	timeout time.Duration
	poll    time.Duration
	now     func() time.Time
}

// Snapshot is the tool's JSON result.
type Snapshot struct {
	Path      string `json:"path"`
	MIMEType  string `json:"mime_type"`
	Base64    string `json:"base64"`
	Timestamp string `json:"timestamp"`
}

func (t *ScoreSnapshotTool) Name() string { return "score_snapshot" }
func (t *ScoreSnapshotTool) Description() string {
	return "Render the current score as a PNG and return it base64 encoded for a visual check. " +
		"Use it when something looks wrong or the user asks to see the score, not after every edit."
}
func (t *ScoreSnapshotTool) Params() []Param { return nil }

func (t *ScoreSnapshotTool) Execute(ctx context.Context, _ map[string]any) (string, error) {
	dir, err := filepath.Abs(t.dir)
	if err != nil {
		return "", errors.Wrapf(err, "could not resolve snapshot directory %s", t.dir)
	}
	if strings.ContainsAny(dir, " \t[]") {
		return "", errors.New("snapshot directory '%s' must not contain spaces or brackets", dir)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", errors.Wrapf(err, "could not create snapshot directory")
	}

	ts := t.now().UTC()
	png := filepath.Join(dir, fmt.Sprintf("score_%s_%03d.png", ts.Format("20060102_150405"), ts.Nanosecond()/int(time.Millisecond)))
	if err := os.Remove(png); err != nil && !os.IsNotExist(err) {
		return "", errors.Wrapf(err, "could not clear stale snapshot %s", png)
	}
	if _, err := t.engine.send("exportimage " + png + " @view line"); err != nil {
		return "", err
	}

	data, err := t.waitForFile(ctx, png)
	if err != nil {
		return "", err
	}
	return encodeJSON(Snapshot{
		Path:      png,
		MIMEType:  "image/png",
		Base64:    base64.StdEncoding.EncodeToString(data),
		Timestamp: ts.Format(time.RFC3339),
	})
}

// waitForFile polls until path exists with content, the timeout passes or
// ctx is done.
func (t *ScoreSnapshotTool) waitForFile(ctx context.Context, path string) ([]byte, error) {
	deadline := time.Now().Add(t.timeout)
	for {
		if info, err := os.Stat(path); err == nil && info.Size() > 0 {
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, errors.Wrapf(err, "could not read snapshot %s", path)
			}
			return data, nil
		}
		if time.Now().After(deadline) {
			return nil, errors.New("score image not written within %s; is the score object connected?", t.timeout)
		}
		if err := t.engine.sleep(ctx, t.poll); err != nil {
			return nil, errors.Wrapf(err, "waiting for snapshot")
		}
	}
}
