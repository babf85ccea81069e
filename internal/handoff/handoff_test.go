package handoff

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/specialistvlad/procgrid/internal/process"
	"github.com/specialistvlad/procgrid/internal/pset"
	"github.com/specialistvlad/procgrid/internal/sequence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	socketio "github.com/zishang520/socket.io/v2/socket"
	"gopkg.in/yaml.v3"
)

func newFinalized(t *testing.T) (*process.Process, *process.Plan) {
	t.Helper()
	p := process.New("ANA")
	require.NoError(t, p.SetSource(process.NewModule("PoolSource", process.RoleSource, pset.New().With("fileNames", pset.VString("file:a.root")))))
	require.NoError(t, p.Declare("ana", process.NewModule("Analyzer", process.RoleAnalyzer, pset.New().With("src", pset.Tag(pset.MustParseInputTag("muons"))))))
	require.NoError(t, p.DeclarePath("p", sequence.Ref("ana")))
	plan, err := p.Finalize(context.Background())
	require.NoError(t, err)
	return p, plan
}

func TestParseFormat(t *testing.T) {
	for _, f := range Formats() {
		got, err := ParseFormat(string(f))
		require.NoError(t, err)
		assert.Equal(t, f, got)
	}
	got, err := ParseFormat("JSON")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, got)

	_, err = ParseFormat("xml")
	require.Error(t, err)
}

func TestRender(t *testing.T) {
	p, plan := newFinalized(t)

	t.Run("hcl", func(t *testing.T) {
		out, err := Render(p, plan, FormatHCL)
		require.NoError(t, err)
		assert.Contains(t, string(out), `process = "ANA"`)
		assert.Contains(t, string(out), `analyzer "Analyzer" "ana"`)
	})

	t.Run("json", func(t *testing.T) {
		out, err := Render(p, plan, FormatJSON)
		require.NoError(t, err)
		var doc struct {
			Config struct {
				Process string `json:"process"`
			} `json:"config"`
			Plan struct {
				Paths []struct {
					Label string `json:"label"`
				} `json:"paths"`
			} `json:"plan"`
		}
		require.NoError(t, json.Unmarshal(out, &doc))
		assert.Equal(t, "ANA", doc.Config.Process)
		require.Len(t, doc.Plan.Paths, 1)
		assert.Equal(t, "p", doc.Plan.Paths[0].Label)
	})

	t.Run("yaml", func(t *testing.T) {
		out, err := Render(p, plan, FormatYAML)
		require.NoError(t, err)
		var doc map[string]any
		require.NoError(t, yaml.Unmarshal(out, &doc))
		assert.Contains(t, doc, "config")
		assert.Contains(t, doc, "plan")
	})
}

func TestFile_Deliver(t *testing.T) {
	p, plan := newFinalized(t)
	path := filepath.Join(t.TempDir(), "process.json")

	f := &File{Path: path, Format: FormatJSON}
	require.NoError(t, f.Deliver(context.Background(), p, plan))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, json.Valid(raw))
}

func TestEnvelope(t *testing.T) {
	p, plan := newFinalized(t)
	env := NewEnvelope(p, plan)

	_, err := uuid.Parse(env.ID)
	require.NoError(t, err)
	assert.Equal(t, "ANA", env.Process)
	assert.NotEqual(t, env.ID, NewEnvelope(p, plan).ID)

	data, err := env.payload()
	require.NoError(t, err)
	assert.Equal(t, env.ID, data["id"])
	assert.Contains(t, data, "plan")
	assert.Contains(t, data, "config")
}

func TestSocketIO_Errors(t *testing.T) {
	p, plan := newFinalized(t)
	ctx := context.Background()

	err := (&SocketIO{URL: "not a url"}).Deliver(ctx, p, plan)
	require.Error(t, err)

	// Nothing listens on port 1.
	s := &SocketIO{URL: "http://127.0.0.1:1", Timeout: 500 * time.Millisecond}
	require.Error(t, s.Deliver(ctx, p, plan))
}

// newEngine starts an in-process socket.io engine that answers every process
// with reply, carrying whatever answer returns for the received envelope.
func newEngine(t *testing.T, reply string, answer func(env map[string]any) any) (string, <-chan map[string]any) {
	t.Helper()
	io := socketio.NewServer(nil, nil)
	got := make(chan map[string]any, 1)
	io.On("connection", func(clients ...any) {
		client := clients[0].(*socketio.Socket)
		client.On(EventProcess, func(args ...any) {
			env, _ := first(args).(map[string]any)
			select {
			case got <- env:
			default:
			}
			client.Emit(reply, answer(env))
		})
	})
	srv := httptest.NewServer(io.ServeHandler(nil))
	t.Cleanup(func() {
		io.Close(nil)
		srv.Close()
	})
	return srv.URL, got
}

func TestSocketIO_RoundTrip(t *testing.T) {
	testCases := []struct {
		name    string
		reply   string
		answer  func(env map[string]any) any
		wantErr []string
	}{
		{
			name:   "accepted",
			reply:  EventAccepted,
			answer: func(env map[string]any) any { return env["id"] },
		},
		{
			name:    "rejected",
			reply:   EventRejected,
			answer:  func(map[string]any) any { return "unknown source type" },
			wantErr: []string{"engine rejected process", "unknown source type"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p, plan := newFinalized(t)
			url, got := newEngine(t, tc.reply, tc.answer)

			err := (&SocketIO{URL: url, Timeout: 5 * time.Second}).Deliver(context.Background(), p, plan)
			if len(tc.wantErr) > 0 {
				require.Error(t, err)
				for _, want := range tc.wantErr {
					assert.Contains(t, err.Error(), want)
				}
			} else {
				require.NoError(t, err)
			}

			var env map[string]any
			select {
			case env = <-got:
			default:
				t.Fatal("engine did not receive the process")
			}
			id, _ := env["id"].(string)
			_, err = uuid.Parse(id)
			require.NoError(t, err)
			assert.Equal(t, "ANA", env["process"])
			assert.Contains(t, env, "plan")
			assert.Contains(t, env, "config")
		})
	}
}
