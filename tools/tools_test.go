package tools

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/m4xw311/bachmcp/config"
	"github.com/m4xw311/bachmcp/errors"
	"github.com/m4xw311/bachmcp/memory"
	"github.com/m4xw311/bachmcp/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBridge records commands and answers queries from a scripted reply
// list. It keeps its own queue so the inbound tools have something to read.
type fakeBridge struct {
	mu       sync.Mutex
	sent     []string
	down     bool
	replies  map[string]string
	queue    []message.Message
	flushes  int
	inFlight int
	maxSeen  int
	delay    time.Duration
	timeouts []time.Duration
	// onSend runs after a command is recorded, outside the lock.
	onSend func(string)
}

func newFakeBridge() *fakeBridge {
	return &fakeBridge{replies: map[string]string{}}
}

func (f *fakeBridge) SendCommand(text string) bool {
	f.mu.Lock()
	if f.down {
		f.mu.Unlock()
		return false
	}
	f.sent = append(f.sent, text)
	hook := f.onSend
	f.mu.Unlock()
	if hook != nil {
		hook(text)
	}
	return true
}

func (f *fakeBridge) SendAndWait(ctx context.Context, text string, timeout time.Duration, kind message.Kind) (message.Message, bool) {
	if !f.SendCommand(text) {
		return message.Message{}, false
	}
	f.mu.Lock()
	f.timeouts = append(f.timeouts, timeout)
	f.inFlight++
	f.maxSeen = max(f.maxSeen, f.inFlight)
	reply, ok := f.replies[text]
	delay := f.delay
	f.mu.Unlock()

	time.Sleep(delay)

	f.mu.Lock()
	f.inFlight--
	f.mu.Unlock()
	if !ok {
		return message.Message{}, false
	}
	return message.Classify(reply), true
}

func (f *fakeBridge) WaitForIncoming(ctx context.Context, timeout time.Duration, kind message.Kind) (message.Message, bool) {
	f.mu.Lock()
	f.timeouts = append(f.timeouts, timeout)
	f.mu.Unlock()
	return f.PopNext(kind)
}

func (f *fakeBridge) PopNext(kind message.Kind) (message.Message, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, m := range f.queue {
		if m.Kind.Matches(kind) {
			f.queue = append(f.queue[:i], f.queue[i+1:]...)
			return m, true
		}
	}
	return message.Message{}, false
}

func (f *fakeBridge) PeekLatest(kind message.Kind) (message.Message, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.queue) - 1; i >= 0; i-- {
		if f.queue[i].Kind.Matches(kind) {
			return f.queue[i], true
		}
	}
	return message.Message{}, false
}

func (f *fakeBridge) FlushBeforeQuery() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := len(f.queue)
	f.queue = nil
	f.flushes++
	return n
}

func (f *fakeBridge) QueueSize() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queue)
}

func (f *fakeBridge) lastSent(t *testing.T) string {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.sent, "nothing was sent")
	return f.sent[len(f.sent)-1]
}

func newTestRegistry(t *testing.T, mutate ...func(*config.Config)) (*ToolRegistry, *fakeBridge) {
	t.Helper()
	cfg := config.Default()
	cfg.StepDelay = 0
	cfg.QueryTimeout = time.Second
	cfg.MemoryFile = filepath.Join(t.TempDir(), "memory.json")
	for _, m := range mutate {
		m(cfg)
	}
	fb := newFakeBridge()
	return NewToolRegistry(cfg, fb), fb
}

func run(t *testing.T, r *ToolRegistry, name string, a map[string]any) (string, error) {
	t.Helper()
	tool, ok := r.GetTool(name)
	require.True(t, ok, "tool %s not registered", name)
	return tool.Execute(context.Background(), a)
}

func TestCommandEncoders(t *testing.T) {
	tests := []struct {
		tool string
		args map[string]any
		want string
	}{
		{"send_score_to_max", map[string]any{"score_llll": " roll [ [ 0. [ 6000. 500. 100 0 ] 0 ] 0 ] "}, "roll [ [ 0. [ 6000. 500. 100 0 ] 0 ] 0 ]"},
		{"send_bell_to_eval", map[string]any{"bell_code": "$x1 = 1"}, "bell $x1 = 1"},
		{"send_process_message_to_max", map[string]any{"message": "zoom 80"}, "zoom 80"},
		{"clefs", nil, "clefs G"},
		{"clefs", map[string]any{"clefs_list": "G F"}, "clefs G F"},
		{"numvoices", map[string]any{"count": float64(3)}, "numvoices 3"},
		{"numvoices", map[string]any{"count": "2"}, "numvoices 2"},
		{"numparts", nil, "numparts 1"},
		{"voicenames", map[string]any{"value": "Flute [Violin I]"}, "voicenames Flute [Violin I]"},
		{"stafflines", map[string]any{"value": "5 1"}, "stafflines 5 1"},
		{"addmarker", map[string]any{"position": "1000", "name_or_names": "A"}, "addmarker 1000 A"},
		{"addmarker", map[string]any{"position": "cursor", "name_or_names": "T", "role": "tempo", "content": "[1/4 60]"}, "addmarker cursor T tempo [1/4 60]"},
		{"addmarker", map[string]any{"position": "0", "name_or_names": "B", "content": "ignored"}, "addmarker 0 B"},
		{"deletemarker", map[string]any{"marker_names": "A B"}, "deletemarker A B"},
		{"deletevoice", map[string]any{"voice_number": float64(2)}, "deletevoice 2"},
		{"insertvoice", map[string]any{"voice_number": float64(1), "voice_or_ref": "2"}, "insertvoice 1 2"},
		{"insertvoice", map[string]any{"voice_number": float64(4)}, "insertvoice 4"},
		{"explodechords", nil, "explodechords"},
		{"explodechords", map[string]any{"selection": true}, "explodechords selection"},
		{"legato", nil, "legato"},
		{"legato", map[string]any{"trim_or_extend": "extend"}, "legato extend"},
		{"glissando", nil, "glissando 0.0"},
		{"glissando", map[string]any{"trim_or_extend": "trim", "slope": -0.5}, "glissando trim -0.5"},
		{"play", nil, "play"},
		{"play", map[string]any{"scheduling_mode": "offline", "start_ms": float64(1000)}, "play offline 1000.0"},
		{"play", map[string]any{"start_ms": float64(0), "end_ms": 2500.5}, "play 0.0 2500.5"},
		{"stop", nil, "stop"},
		{"clear", nil, "clear"},
		{"clearselection", nil, "clearselection"},
		{"sel", map[string]any{"arguments": "notes if pitch == 6000"}, "sel notes if pitch == 6000"},
		{"domain", map[string]any{"start_or_duration_ms": float64(10000)}, "domain 10000.0"},
		{"domain", map[string]any{"start_or_duration_ms": float64(1000), "end_ms": float64(5000), "pad_pixels": float64(20)}, "domain 1000.0 5000.0 20.0"},
		{"set_appearance", map[string]any{"attribute": "bgcolor", "value": "0. 0. 0. 1."}, "bgcolor 0. 0. 0. 1."},
		{"exportmidi", nil, "exportmidi [exportmarkers 1] [exportbarlines 1] [exportdivisions 1] [exportsubdivisions 1] [format 1] [resolution 960]"},
		{"exportmidi", map[string]any{"filename": "out/song.mid", "voices": "1 2", "format": float64(0), "exportbarlines": float64(0)},
			"exportmidi out/song.mid [exportmarkers 1] [exportbarlines 0] [exportdivisions 1] [exportsubdivisions 1] [voices 1 2] [format 0] [resolution 960]"},
		{"exportimage", nil, "exportimage"},
		{"exportimage", map[string]any{"filename": "/tmp/score.png", "view": "line"}, "exportimage /tmp/score.png @view line"},
		{"exportimage", map[string]any{"filename": "/tmp/score.png", "view": "Scroll", "mspersystem": float64(5000), "dpi": float64(144)},
			"exportimage /tmp/score.png @view scroll @mspersystem 5000.0 @dpi 144"},
		{"exportimage", map[string]any{"filename": "/tmp/s.png", "view": "multiline", "adaptwidth": "1", "systemvshift": float64(10)},
			"exportimage /tmp/s.png @view multiline @adaptwidth 1 @systemvshift 10"},
	}
	for _, tt := range tests {
		t.Run(tt.tool+"/"+tt.want, func(t *testing.T) {
			r, fb := newTestRegistry(t)
			out, err := run(t, r, tt.tool, tt.args)
			require.NoError(t, err)
			assert.Equal(t, "Sent: "+tt.want, out)
			assert.Equal(t, tt.want, fb.lastSent(t))
		})
	}
}

func TestEncoderValidation(t *testing.T) {
	tests := []struct {
		tool string
		args map[string]any
	}{
		{"send_score_to_max", map[string]any{"score_llll": "   "}},
		{"send_score_to_max", map[string]any{"score_llll": "roll [ [ 0. [ 6000. 500. 100 0 ] 0 ]"}},
		{"send_score_to_max", map[string]any{"score_llll": "roll [ 1 ] ]"}},
		{"send_score_to_max", map[string]any{"score_llll": "roll [ {1} ]"}},
		{"send_bell_to_eval", map[string]any{"bell_code": ""}},
		{"send_process_message_to_max", map[string]any{"message": "  "}},
		{"clefs", map[string]any{"clefs_list": ""}},
		{"numvoices", map[string]any{"count": float64(0)}},
		{"numvoices", map[string]any{}},
		{"numvoices", map[string]any{"count": 1.5}},
		{"deletevoice", map[string]any{"voice_number": float64(-1)}},
		{"voicenames", map[string]any{}},
		{"addmarker", map[string]any{"position": "", "name_or_names": "A"}},
		{"addmarker", map[string]any{"position": "0"}},
		{"legato", map[string]any{"trim_or_extend": "stretch"}},
		{"glissando", map[string]any{"slope": float64(2)}},
		{"domain", map[string]any{}},
		{"play", map[string]any{"start_ms": "soon"}},
		{"set_appearance", map[string]any{"attribute": "bgcolor"}},
		{"set_appearance", map[string]any{"attribute": "bg color", "value": "1"}},
		{"exportmidi", map[string]any{"format": float64(2)}},
		{"exportmidi", map[string]any{"filename": "my song.mid"}},
		{"exportimage", map[string]any{"view": "page"}},
		{"exportimage", map[string]any{"filename": "a b.png"}},
		{"exportimage", map[string]any{"filename": ".bachmcp/score.png"}},
		{"exportimage", map[string]any{"mspersystem": float64(0)}},
		{"exportimage", map[string]any{"adaptwidth": float64(2)}},
		{"exportimage", map[string]any{"dpi": float64(-72)}},
		{"exportimage", map[string]any{"systemvshift": float64(-1)}},
		{"add_single_note", map[string]any{"duration_ms": float64(0)}},
		{"add_single_note", map[string]any{"velocity": float64(128)}},
		{"add_single_note", map[string]any{"voice": float64(0)}},
		{"add_single_note", map[string]any{"slots": "[slots [20 ff]"}},
	}
	for _, tt := range tests {
		t.Run(tt.tool, func(t *testing.T) {
			r, fb := newTestRegistry(t)
			_, err := run(t, r, tt.tool, tt.args)
			assert.Error(t, err)
			assert.Empty(t, fb.sent, "nothing must reach the engine")
		})
	}
}

func TestScoreRejectionWrapsUnbalanced(t *testing.T) {
	r, _ := newTestRegistry(t)
	_, err := run(t, r, "send_score_to_max", map[string]any{"score_llll": "roll [ [ 1 ]"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrUnbalanced))
}

func TestAddSingleNote(t *testing.T) {
	r, fb := newTestRegistry(t)

	_, err := run(t, r, "add_single_note", nil)
	require.NoError(t, err)
	assert.Equal(t, "roll [ [ 0.000 [ 6000.000 1000.000 100 0 ] 0 ] 0 ]", fb.lastSent(t))

	_, err = run(t, r, "add_single_note", map[string]any{
		"onset_ms":    float64(500),
		"pitch_cents": float64(6400),
		"duration_ms": float64(250),
		"velocity":    float64(90),
		"voice":       float64(3),
		"slots":       "[slots [20 ff]]",
		"breakpoints": "[breakpoints [0 0 0] [1 200 0]]",
		"name":        "top",
		"note_flag":   float64(2),
	})
	require.NoError(t, err)
	assert.Equal(t,
		"roll [ 0 ] [ 0 ] [ [ 500.000 [ 6400.000 250.000 90 [breakpoints [0 0 0] [1 200 0]] [slots [20 ff]] [name top] 2 ] 0 ] 0 ]",
		fb.lastSent(t))
	assert.NoError(t, message.ValidateBrackets(message.StripListPrefix(fb.lastSent(t), "roll")))
}

func TestSendFailureIsAnError(t *testing.T) {
	r, fb := newTestRegistry(t)
	fb.down = true
	_, err := run(t, r, "play", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotConnected))
}

func TestProcessMessageAllowlist(t *testing.T) {
	r, fb := newTestRegistry(t, func(c *config.Config) {
		c.AllowedCommands = []string{`^zoom \d+$`, `^(play|stop)$`, "[bad"}
	})

	_, err := run(t, r, "send_process_message_to_max", map[string]any{"message": "zoom 120"})
	require.NoError(t, err)
	_, err = run(t, r, "send_process_message_to_max", map[string]any{"message": "stop"})
	require.NoError(t, err)
	_, err = run(t, r, "send_process_message_to_max", map[string]any{"message": "[bad"})
	require.NoError(t, err, "an invalid pattern is compared literally")

	_, err = run(t, r, "send_process_message_to_max", map[string]any{"message": "clear"})
	assert.Error(t, err)
	assert.Equal(t, []string{"zoom 120", "stop", "[bad"}, fb.sent)

	tool, _ := r.GetTool("send_process_message_to_max")
	assert.Contains(t, tool.Description(), `^zoom \d+$`)
}

func TestExportMidiPathGuards(t *testing.T) {
	r, fb := newTestRegistry(t, func(c *config.Config) {
		c.FilesystemAccess.ReadOnly = []string{"scores/**"}
	})

	_, err := run(t, r, "exportmidi", map[string]any{"filename": ".bachmcp/memory.json"})
	assert.ErrorContains(t, err, "hidden")
	_, err = run(t, r, "exportmidi", map[string]any{"filename": "./scores/../scores/a.mid"})
	assert.ErrorContains(t, err, "read-only")
	assert.Empty(t, fb.sent)

	_, err = run(t, r, "exportmidi", map[string]any{"filename": "exports/a.mid"})
	assert.NoError(t, err)
}

func TestScoreSnapshot(t *testing.T) {
	dir := t.TempDir()
	r, fb := newTestRegistry(t, func(c *config.Config) {
		c.SnapshotDir = dir
		c.PollInterval = 5 * time.Millisecond
	})
	png := []byte("\x89PNG\r\n\x1a\nfake")
	fb.onSend = func(cmd string) {
		// exportimage <path> @view line
		fields := strings.Fields(cmd)
		if len(fields) == 4 && fields[0] == "exportimage" {
			go func() {
				time.Sleep(20 * time.Millisecond)
				os.WriteFile(fields[1], png, 0644)
			}()
		}
	}

	out, err := run(t, r, "score_snapshot", nil)
	require.NoError(t, err)

	var snap Snapshot
	require.NoError(t, json.Unmarshal([]byte(out), &snap))
	assert.Equal(t, dir, filepath.Dir(snap.Path))
	assert.True(t, strings.HasPrefix(filepath.Base(snap.Path), "score_"))
	assert.Equal(t, "image/png", snap.MIMEType)
	decoded, err := base64.StdEncoding.DecodeString(snap.Base64)
	require.NoError(t, err)
	assert.Equal(t, png, decoded)
	_, err = time.Parse(time.RFC3339, snap.Timestamp)
	assert.NoError(t, err)
	assert.Equal(t, "exportimage "+snap.Path+" @view line", fb.lastSent(t))
}

func TestScoreSnapshotFailures(t *testing.T) {
	r, fb := newTestRegistry(t, func(c *config.Config) {
		c.SnapshotDir = t.TempDir()
		c.SnapshotTimeout = 50 * time.Millisecond
		c.PollInterval = 5 * time.Millisecond
	})

	_, err := run(t, r, "score_snapshot", nil)
	assert.ErrorContains(t, err, "not written within")
	assert.Len(t, fb.sent, 1)

	fb.down = true
	_, err = run(t, r, "score_snapshot", nil)
	assert.True(t, errors.Is(err, errors.ErrNotConnected))

	r, _ = newTestRegistry(t, func(c *config.Config) {
		c.SnapshotDir = filepath.Join(t.TempDir(), "my scores")
	})
	_, err = run(t, r, "score_snapshot", nil)
	assert.ErrorContains(t, err, "spaces")
}

func TestQueryTools(t *testing.T) {
	tests := []struct {
		tool    string
		args    map[string]any
		command string
	}{
		{"dump", nil, "dump"},
		{"dump", map[string]any{"selection": true, "mode": "body"}, "dump selection body"},
		{"dump", map[string]any{"mode": "keys", "dump_options": "clefs body"}, "dump keys clefs body"},
		{"get_length", nil, "getlength"},
		{"get_marker", nil, "getmarker"},
		{"get_marker", map[string]any{"names": "A", "name_first": true}, "getmarker @namefirst 1 A"},
		{"getcurrentchord", nil, "getcurrentchord"},
		{"getnumchords", nil, "getnumchords"},
		{"getnumnotes", map[string]any{"query_label": "n"}, "getnumnotes [label n]"},
		{"getnumvoices", map[string]any{"query_label": "v"}, "getnumvoices [label v]"},
		{"subroll", nil, "subroll [] []"},
		{"subroll", map[string]any{"voices": "[1 2]", "time_lapse": "[0 1000]", "onset_only": true, "selective_options": "[notes]"},
			"subroll onset [1 2] [0 1000] [notes]"},
	}
	for _, tt := range tests {
		t.Run(tt.command, func(t *testing.T) {
			r, fb := newTestRegistry(t)
			fb.replies[tt.command] = "[reply]"
			fb.queue = []message.Message{message.Classify("stale")}

			out, err := run(t, r, tt.tool, tt.args)
			require.NoError(t, err)
			assert.Equal(t, "[reply]", out)
			assert.Equal(t, tt.command, fb.lastSent(t))
			assert.Equal(t, 1, fb.flushes, "queries flush before sending")
			assert.Equal(t, 0, fb.QueueSize())
		})
	}
}

func TestQueryNoReply(t *testing.T) {
	r, _ := newTestRegistry(t)
	out, err := run(t, r, "get_length", map[string]any{"timeout_seconds": 0.05})
	require.NoError(t, err)
	assert.Contains(t, out, "No reply")

	_, err = run(t, r, "get_length", map[string]any{"timeout_seconds": float64(0)})
	assert.Error(t, err)
}

func TestTimeoutArgumentBounds(t *testing.T) {
	r, fb := newTestRegistry(t)

	_, err := run(t, r, "wait_for_incoming", map[string]any{"timeout_seconds": 1e12})
	require.NoError(t, err)
	_, err = run(t, r, "get_length", map[string]any{"timeout_seconds": "1e300"})
	require.NoError(t, err)
	_, err = run(t, r, "wait_for_incoming", map[string]any{"timeout_seconds": 1.5})
	require.NoError(t, err)

	fb.mu.Lock()
	assert.Equal(t, []time.Duration{maxWait, maxWait, 1500 * time.Millisecond}, fb.timeouts)
	fb.mu.Unlock()

	for _, bad := range []any{"NaN", "Inf", "-Inf", -1.0} {
		_, err := run(t, r, "wait_for_incoming", map[string]any{"timeout_seconds": bad})
		assert.Error(t, err, "%v", bad)
		_, err = run(t, r, "get_length", map[string]any{"timeout_seconds": bad})
		assert.Error(t, err, "%v", bad)
	}
}

func TestQueriesAreSerialized(t *testing.T) {
	r, fb := newTestRegistry(t)
	fb.replies["getlength"] = "1000."
	fb.delay = 20 * time.Millisecond

	var wg sync.WaitGroup
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := run(t, r, "get_length", nil)
			assert.NoError(t, err)
			assert.Equal(t, "1000.", out)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, fb.maxSeen)
	assert.Equal(t, 5, fb.flushes)
}

func TestQueryHonoursCancelledContext(t *testing.T) {
	r, fb := newTestRegistry(t)
	fb.replies["getlength"] = "1000."
	fb.delay = 200 * time.Millisecond

	tool, _ := r.GetTool("get_length")
	go tool.Execute(context.Background(), nil)
	require.Eventually(t, func() bool { return fb.inFlightNow() > 0 }, time.Second, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := tool.Execute(ctx, nil)
	assert.Error(t, err)
}

func (f *fakeBridge) inFlightNow() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.inFlight
}

func TestNewDefaultScore(t *testing.T) {
	r, fb := newTestRegistry(t)
	out, err := run(t, r, "new_default_score", nil)
	require.NoError(t, err)
	assert.Contains(t, out, "Default score initialised.")
	require.Len(t, fb.sent, len(defaultScoreSteps))
	assert.Equal(t, "clear", fb.sent[0])
	assert.Equal(t, "domain 10000.0", fb.sent[9])

	fb.down = true
	_, err = run(t, r, "new_default_score", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "10 failed step(s)")
}

func TestInboundTools(t *testing.T) {
	r, fb := newTestRegistry(t)
	fb.queue = []message.Message{
		message.Classify("ready"),
		message.Classify("[1 2 3]"),
		message.Classify("done"),
	}

	out, err := run(t, r, "incoming_queue_size", nil)
	require.NoError(t, err)
	assert.Equal(t, "3", out)

	out, err = run(t, r, "peek_incoming", map[string]any{"kind": "plain"})
	require.NoError(t, err)
	var peeked message.Message
	require.NoError(t, json.Unmarshal([]byte(out), &peeked))
	assert.Equal(t, "done", peeked.Payload)

	out, err = run(t, r, "pop_incoming", map[string]any{"kind": "llll"})
	require.NoError(t, err)
	var popped message.Message
	require.NoError(t, json.Unmarshal([]byte(out), &popped))
	assert.Equal(t, message.KindStructured, popped.Kind)
	assert.Equal(t, "[1 2 3]", popped.Payload)

	out, err = run(t, r, "wait_for_incoming", map[string]any{"timeout_seconds": 0.01})
	require.NoError(t, err)
	assert.Contains(t, out, `"data":"ready"`)

	_, err = run(t, r, "pop_incoming", map[string]any{"kind": "midi"})
	assert.Error(t, err)

	out, err = run(t, r, "flush_incoming", nil)
	require.NoError(t, err)
	assert.Equal(t, "Flushed 1 message(s).", out)

	out, err = run(t, r, "pop_incoming", nil)
	require.NoError(t, err)
	assert.Equal(t, "No message.", out)
}

func TestMemoryTools(t *testing.T) {
	r, _ := newTestRegistry(t)

	out, err := run(t, r, "project_memory_read", map[string]any{"project": "etude"})
	require.NoError(t, err)
	assert.Contains(t, out, "No memory found")

	_, err = run(t, r, "project_memory_write", map[string]any{"project": "etude", "intent": "canon"})
	require.NoError(t, err)
	out, err = run(t, r, "project_memory_write", map[string]any{"project": "etude", "notes": "in G"})
	require.NoError(t, err)

	var written struct {
		Memory memory.Entry `json:"memory"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &written))
	assert.Equal(t, "canon", written.Memory.Intent)
	assert.Equal(t, "in G", written.Memory.Notes)
	assert.NotEmpty(t, written.Memory.UpdatedAt)

	out, err = run(t, r, "project_memory_read", nil)
	require.NoError(t, err)
	assert.Contains(t, out, `"name": "etude"`)

	_, err = run(t, r, "project_memory_write", map[string]any{"intent": "x"})
	assert.Error(t, err)
}

func TestGetActiveTools(t *testing.T) {
	r, _ := newTestRegistry(t)

	all, err := r.GetActiveTools(&config.Toolset{Name: "default", Tools: []string{"*"}})
	require.NoError(t, err)
	assert.Len(t, all, len(r.Names()))

	some, err := r.GetActiveTools(&config.Toolset{Name: "read", Tools: []string{"get*", "dump", "getnumvoices"}})
	require.NoError(t, err)
	var names []string
	for _, tool := range some {
		names = append(names, tool.Name())
	}
	assert.ElementsMatch(t, []string{"get_length", "get_marker", "getcurrentchord", "getnumchords", "getnumnotes", "getnumvoices", "dump"}, names)

	none, err := r.GetActiveTools(&config.Toolset{Name: "empty", Tools: []string{"zz*"}})
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = r.GetActiveTools(&config.Toolset{Name: "typo", Tools: []string{"plya"}})
	assert.True(t, errors.Is(err, errors.ErrToolNotFound))

	_, err = r.GetActiveTools(&config.Toolset{Name: "bad", Tools: []string{"[play"}})
	assert.Error(t, err)
}

func TestEveryToolIsDescribed(t *testing.T) {
	r, _ := newTestRegistry(t)
	for _, name := range r.Names() {
		tool, _ := r.GetTool(name)
		assert.NotEmpty(t, tool.Description(), name)
		for _, p := range tool.Params() {
			assert.NotEmpty(t, p.Name, name)
			assert.NotEmpty(t, p.Type, name)
		}
	}
	assert.Contains(t, r.Names(), "send_score_to_max")
	assert.Contains(t, r.Names(), "project_memory_write")
}
