//go:build integration

package test_test

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

var (
	testBinary string
	toneWAV    string
	silenceWAV string
)

func TestMain(m *testing.M) {
	testBinary = os.Getenv("TRADUCTOR_TEST_BIN")
	if testBinary == "" {
		fmt.Fprintln(os.Stderr, "TRADUCTOR_TEST_BIN not set; build the binary and point the variable at it")
		os.Exit(1)
	}

	dir, err := os.MkdirTemp("", "traductor-integration")
	if err != nil {
		fmt.Fprintf(os.Stderr, "temp dir: %v\n", err)
		os.Exit(1)
	}
	toneWAV = filepath.Join(dir, "tone.wav")
	silenceWAV = filepath.Join(dir, "silence.wav")
	if err := generateWAV(toneWAV, 16000, 3.0, 440); err != nil {
		fmt.Fprintf(os.Stderr, "failed to generate tone.wav: %v\n", err)
		os.Exit(1)
	}
	if err := generateWAV(silenceWAV, 16000, 1.0, 0); err != nil {
		fmt.Fprintf(os.Stderr, "failed to generate silence.wav: %v\n", err)
		os.Exit(1)
	}

	code := m.Run()
	os.RemoveAll(dir)
	os.Exit(code)
}

// generateWAV writes mono PCM16. freq 0 gives silence.
func generateWAV(path string, sampleRate int, durationS float64, freq float64) error {
	const headerSize = 44
	numSamples := int(float64(sampleRate) * durationS)
	dataSize := numSamples * 2

	buf := make([]byte, headerSize+dataSize)
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(headerSize-8+dataSize))
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(buf[22:24], 1) // mono
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(sampleRate*2))
	binary.LittleEndian.PutUint16(buf[32:34], 2)  // block align
	binary.LittleEndian.PutUint16(buf[34:36], 16) // bits per sample
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))

	for i := 0; i < numSamples; i++ {
		v := int16(10000 * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate)))
		binary.LittleEndian.PutUint16(buf[headerSize+i*2:], uint16(v))
	}
	return os.WriteFile(path, buf, 0644)
}

// fakeAPI answers the translator endpoints with canned results.
type fakeAPI struct {
	mu          sync.Mutex
	paths       []string
	sttStatus   int
	sttBlock    bool
	translation string
}

func newFakeAPI(t *testing.T) (*fakeAPI, string) {
	t.Helper()
	f := &fakeAPI{sttStatus: http.StatusOK, translation: "buenos días"}
	srv := httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(srv.Close)
	return f, srv.URL + "/api/"
}

func (f *fakeAPI) serve(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.paths = append(f.paths, r.Method+" "+r.URL.Path)
	status, block, translation := f.sttStatus, f.sttBlock, f.translation
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	path := strings.TrimPrefix(r.URL.Path, "/api/")
	switch {
	case path == "languages/":
		json.NewEncoder(w).Encode([]map[string]any{
			{"name": "Rapa Nui", "code": "rap_Latn", "writing": "Latn"},
		})
	case path == "speech-to-text/":
		if block {
			<-r.Context().Done()
			return
		}
		if status != http.StatusOK {
			w.WriteHeader(status)
			json.NewEncoder(w).Encode(map[string]string{"detail": "Authentication credentials were not provided."})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"id": 7, "text": " ia orana ", "language": "rap_Latn"})
	case strings.HasSuffix(path, "/validate_transcription/"):
		json.NewEncoder(w).Encode(map[string]any{})
	case path == "translate/":
		json.NewEncoder(w).Encode(map[string]string{
			"dst_text": translation, "model_name": "nllb", "model_version": "v1",
		})
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (f *fakeAPI) called(prefix string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.paths {
		if strings.HasPrefix(p, prefix) {
			return true
		}
	}
	return false
}

func cmds(parts ...string) string {
	return strings.Join(parts, "\n") + "\n"
}

func runTraductor(t *testing.T, apiURL, stdin, wav string) (out, logDir string) {
	t.Helper()
	logDir = t.TempDir()
	cmd := exec.Command(testBinary, "-logpath", logDir, "-api", apiURL, "-variant", "rap", "-test", wav)
	cmd.Dir = t.TempDir()
	cmd.Stdin = strings.NewReader(stdin)
	cmd.Env = os.Environ()

	b, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("traductor exited with error: %v\noutput: %s", err, b)
	}
	return string(b), logDir
}

func readLog(t *testing.T, logDir, filename string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(logDir, filename))
	if err != nil {
		if os.IsNotExist(err) {
			return ""
		}
		t.Fatalf("failed to read %s: %v", filename, err)
	}
	return string(data)
}

func requireOutput(t *testing.T, out string, wants ...string) {
	t.Helper()
	for _, w := range wants {
		if !strings.Contains(out, w) {
			t.Errorf("output missing %q\n%s", w, out)
		}
	}
}

func TestDictateConfirmTranslate(t *testing.T) {
	f, url := newFakeAPI(t)
	out, logDir := runTraductor(t, url, cmds(
		"SIDE target", "START", "SLEEP 800", "STOP",
		"WAIT reviewing", "CONFIRM", "WAIT idle", "WAIT_TRANSLATION", "QUIT",
	), toneWAV)

	requireOutput(t, out,
		"STATE idle -> ready (opened)",
		"STATE ready -> recording",
		"DRAFT target: ia orana",
		"STATE reviewing -> idle (confirmed)",
		"TRANSLATION rap_Latn -> spa_Latn: buenos días",
	)
	if !f.called("PATCH /api/speech-to-text/7/validate_transcription/") {
		t.Error("transcription was not validated")
	}
	if tr := readLog(t, logDir, "transcribe_log.txt"); !strings.Contains(tr, "ia orana") {
		t.Errorf("transcribe_log.txt = %q", tr)
	}
	diag := readLog(t, logDir, "diagnostics_log.txt")
	for _, want := range []string{"session_start", "op=speech-to-text", "op=translate", "to=reviewing"} {
		if !strings.Contains(diag, want) {
			t.Errorf("diagnostics missing %q", want)
		}
	}
}

func TestSourceSideHasNoTranscription(t *testing.T) {
	f, url := newFakeAPI(t)
	out, _ := runTraductor(t, url, cmds("START", "QUIT"), toneWAV)
	requireOutput(t, out, "Voice input is not available", "ERROR START")
	if f.called("POST /api/speech-to-text/") {
		t.Error("speech-to-text called for a language without transcription")
	}
}

func TestQuickStopDiscards(t *testing.T) {
	f, url := newFakeAPI(t)
	out, _ := runTraductor(t, url, cmds("SIDE target", "START", "STOP", "WAIT ready", "QUIT"), toneWAV)
	requireOutput(t, out, "too_short", "recording -> ready (quick_cancel)")
	if f.called("POST /api/speech-to-text/") {
		t.Error("discarded recording was transcribed")
	}
}

func TestReRecord(t *testing.T) {
	_, url := newFakeAPI(t)
	out, _ := runTraductor(t, url, cmds(
		"SIDE target", "START", "SLEEP 700", "STOP", "WAIT reviewing",
		"PLAY", "RERECORD", "WAIT ready", "QUIT",
	), toneWAV)
	requireOutput(t, out, "PLAYING ", "reviewing -> ready (re_record)")
}

func TestCancelTranscription(t *testing.T) {
	f, url := newFakeAPI(t)
	f.sttBlock = true
	out, _ := runTraductor(t, url, cmds(
		"SIDE target", "START", "SLEEP 700", "STOP",
		"WAIT transcribing", "CANCEL", "WAIT idle", "QUIT",
	), toneWAV)
	requireOutput(t, out, "transcription_cancelled", "transcribing -> idle")
}

func TestTranscriptionNeedsSignIn(t *testing.T) {
	f, url := newFakeAPI(t)
	f.sttStatus = http.StatusUnauthorized
	out, _ := runTraductor(t, url, cmds(
		"SIDE target", "START", "SLEEP 700", "STOP", "WAIT error", "QUIT",
	), toneWAV)
	requireOutput(t, out, "Please sign in to use voice transcription", "transcribing -> error")
}

func TestUploads(t *testing.T) {
	_, url := newFakeAPI(t)
	notes := filepath.Join(t.TempDir(), "notes.txt")
	if err := os.WriteFile(notes, []byte("not audio"), 0644); err != nil {
		t.Fatal(err)
	}
	out, _ := runTraductor(t, url, cmds(
		"SIDE target", "UPLOAD "+notes,
		"UPLOAD "+toneWAV, "WAIT reviewing", "CONFIRM", "WAIT_TRANSLATION", "QUIT",
	), silenceWAV)
	requireOutput(t, out, "unsupported_type", "DRAFT target: ia orana", "TRANSLATION")
}
