package idle

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func newTestTmux(env string, now time.Time, exec cmdExecutor) *TmuxSource {
	d := NewTmuxSource("")
	d.getenv = func(key string) string {
		if key == "TMUX" {
			return env
		}
		return ""
	}
	d.now = func() time.Time { return now }
	d.cmdExecutor = exec
	return d
}

func TestTmuxSource_IdleTime(t *testing.T) {
	now := time.Unix(1700000000, 0)

	tests := []struct {
		name        string
		tmuxEnv     string
		sessionName string
		listOutput  string
		listErr     error
		want        time.Duration
		wantErr     bool
	}{
		{
			name:       "single client",
			tmuxEnv:    "/tmp/tmux-1000/default,1,0",
			listOutput: fmt.Sprintf("%d\n", now.Add(-90*time.Second).Unix()),
			want:       90 * time.Second,
		},
		{
			name:    "most recent client wins",
			tmuxEnv: "/tmp/tmux-1000/default,1,0",
			listOutput: fmt.Sprintf("%d\n%d\n%d\n",
				now.Add(-10*time.Minute).Unix(),
				now.Add(-5*time.Second).Unix(),
				now.Add(-time.Hour).Unix()),
			want: 5 * time.Second,
		},
		{
			name:        "explicit session",
			tmuxEnv:     "/tmp/tmux-1000/default,1,0",
			sessionName: "work",
			listOutput:  fmt.Sprintf("%d\n", now.Unix()),
			want:        0,
		},
		{
			name:       "garbage lines skipped",
			tmuxEnv:    "/tmp/tmux-1000/default,1,0",
			listOutput: fmt.Sprintf("abc\n\n%d\n", now.Add(-time.Minute).Unix()),
			want:       time.Minute,
		},
		{
			name:       "clock skew clamps to zero",
			tmuxEnv:    "/tmp/tmux-1000/default,1,0",
			listOutput: fmt.Sprintf("%d\n", now.Add(time.Minute).Unix()),
			want:       0,
		},
		{
			name:    "not in tmux",
			tmuxEnv: "",
			wantErr: true,
		},
		{
			name:       "no parsable clients",
			tmuxEnv:    "/tmp/tmux-1000/default,1,0",
			listOutput: "\n",
			wantErr:    true,
		},
		{
			name:    "list-clients fails",
			tmuxEnv: "/tmp/tmux-1000/default,1,0",
			listErr: errors.New("no server running"),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var listedSession string
			d := newTestTmux(tt.tmuxEnv, now, func(name string, args ...string) ([]byte, error) {
				if name != "tmux" {
					return nil, fmt.Errorf("unexpected command %s", name)
				}
				switch args[0] {
				case "display-message":
					return []byte("main\n"), nil
				case "list-clients":
					listedSession = args[2]
					return []byte(tt.listOutput), tt.listErr
				}
				return nil, fmt.Errorf("unexpected args %v", args)
			})
			d.sessionName = tt.sessionName

			got, err := d.IdleTime()
			if (err != nil) != tt.wantErr {
				t.Fatalf("IdleTime() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if got != tt.want {
				t.Errorf("IdleTime() = %v, want %v", got, tt.want)
			}

			wantSession := tt.sessionName
			if wantSession == "" {
				wantSession = "main"
			}
			if listedSession != wantSession {
				t.Errorf("listed session %q, want %q", listedSession, wantSession)
			}
		})
	}
}

func TestTmuxSource_IsAvailable(t *testing.T) {
	tests := []struct {
		name    string
		tmuxEnv string
		binErr  error
		want    bool
	}{
		{name: "in tmux with binary", tmuxEnv: "/tmp/tmux-1000/default,1,0", want: true},
		{name: "in tmux without binary", tmuxEnv: "/tmp/tmux-1000/default,1,0", binErr: errors.New("not found"), want: false},
		{name: "outside tmux", tmuxEnv: "", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newTestTmux(tt.tmuxEnv, time.Now(), func(name string, args ...string) ([]byte, error) {
				return []byte("tmux 3.3a\n"), tt.binErr
			})
			if got := d.IsAvailable(); got != tt.want {
				t.Errorf("IsAvailable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTmuxSource_Fullscreen(t *testing.T) {
	if fs, err := NewTmuxSource("").FullscreenActive(); fs || err != nil {
		t.Errorf("FullscreenActive() = %v, %v, want false, nil", fs, err)
	}
}
