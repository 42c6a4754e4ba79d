package tools

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/m4xw311/bachmcp/config"
	"github.com/m4xw311/bachmcp/errors"
)

// ExportMidiTool asks the patch to write the score as a MIDI file. The
// engine does the writing; the filename is checked against the same hidden
// and read-only patterns that protect the bridge's own files.
type ExportMidiTool struct {
	engine   *engine
	fsAccess *config.FilesystemAccess
}

func (t *ExportMidiTool) Name() string { return "exportmidi" }
func (t *ExportMidiTool) Description() string {
	return "Export the score as a MIDI file. Without a filename the patch opens a save dialog."
}

func (t *ExportMidiTool) Params() []Param {
	return []Param{
		{Name: "filename", Type: String, Description: "Target file path."},
		{Name: "exportmarkers", Type: Integer, Description: "Include markers (default 1)."},
		{Name: "exportbarlines", Type: Integer, Description: "Include barlines (default 1)."},
		{Name: "exportdivisions", Type: Integer, Description: "Include divisions (default 1)."},
		{Name: "exportsubdivisions", Type: Integer, Description: "Include subdivisions (default 1)."},
		{Name: "voices", Type: String, Description: "Voices to export, e.g. \"1 3\"."},
		{Name: "format", Type: Integer, Description: "MIDI file format 0 or 1 (default 1)."},
		{Name: "resolution", Type: Integer, Description: "Ticks per quarter note (default 960)."},
	}
}

func (t *ExportMidiTool) Execute(ctx context.Context, raw map[string]any) (string, error) {
	a := args(raw)
	parts := []string{"exportmidi"}

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

	for _, opt := range []struct {
		name string
		def  int
	}{
		{"exportmarkers", 1},
		{"exportbarlines", 1},
		{"exportdivisions", 1},
		{"exportsubdivisions", 1},
	} {
		v, err := a.integer(opt.name, opt.def)
		if err != nil {
			return "", err
		}
		parts = append(parts, fmt.Sprintf("[%s %d]", opt.name, v))
	}
	voices, err := a.str("voices", "")
	if err != nil {
		return "", err
	}
	if voices != "" {
		parts = append(parts, "[voices "+voices+"]")
	}
	format, err := a.integer("format", 1)
	if err != nil {
		return "", err
	}
	if format != 0 && format != 1 {
		return "", errors.New("format must be 0 or 1")
	}
	resolution, err := a.integer("resolution", 960)
	if err != nil {
		return "", err
	}
	if resolution <= 0 {
		return "", errors.New("resolution must be > 0")
	}
	parts = append(parts, fmt.Sprintf("[format %d]", format), fmt.Sprintf("[resolution %d]", resolution))

	return t.engine.send(strings.Join(parts, " "))
}

// checkWritePath rejects a target the engine is asked to write when it
// matches a hidden or read-only pattern.
func checkWritePath(path string, fsAccess *config.FilesystemAccess) error {
	clean := filepath.ToSlash(filepath.Clean(path))
	hidden, err := isPathRestricted(clean, fsAccess.Hidden)
	if err != nil {
		return err
	}
	if hidden {
		return errors.New("access denied: path '%s' is hidden", path)
	}
	readOnly, err := isPathRestricted(clean, fsAccess.ReadOnly)
	if err != nil {
		return err
	}
	if readOnly {
		return errors.New("access denied: path '%s' is read-only", path)
	}
	return nil
}
