package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"path/filepath"
	"runtime/debug"
	"time"

	"traductor/api"
	"traductor/audio"
	"traductor/config"
	"traductor/doctor"
	"traductor/lang"
	"traductor/log"
	"traductor/shutdown"
)

var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	configFlag := flag.String("config", "", "config file (default: ./config.yml when present)")
	envFlag := flag.String("env", "", "env file (default: ./.env when present)")
	apiFlag := flag.String("api", "", "API base URL, e.g. https://host/api/")
	tokenFlag := flag.String("token", "", "auth token for signed-in features")
	variantFlag := flag.String("variant", "", "language variant: rap (Rapa Nui) or arn (Mapuzungun)")
	containerFlag := flag.String("container", "", "recording container: wav or flac")
	setupFlag := flag.Bool("setup", false, "Select microphone device (otherwise uses system default)")
	deviceFlag := flag.String("device", "", "Use named microphone device")
	cuesFlag := flag.Bool("cues", true, "Play a tone when recording starts and stops")
	versionFlag := flag.Bool("version", false, "Print version and exit")
	doctorFlag := flag.Bool("doctor", false, "Run system diagnostics and exit")
	crashFlag := flag.Bool("crash", false, "Trigger synthetic panic for testing crash logging")
	logPathFlag := flag.String("logpath", "", "log directory path (default: OS-specific location, use ./ for current dir)")
	profileFlag := flag.String("profile", "", "Enable pprof profiling server (e.g., :6060 or localhost:6060)")
	testFlag := flag.Bool("test", false, "Test mode (headless, stdin-driven, microphone replayed from a WAV file)")
	flag.Parse()

	logPath, err := log.ResolveDir(*logPathFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to resolve log directory: %v\n", err)
		return 1
	}
	log.SetDir(logPath)

	if err := log.EnsureDir(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not create log directory: %v\n", err)
	}

	crashPath := filepath.Join(log.Dir(), "crash_log.txt")
	crashFile, err := os.OpenFile(crashPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err == nil {
		fmt.Fprintf(crashFile, "\n=== Session %s [pid=%d] ===\n", time.Now().Format("2006-01-02 15:04:05"), os.Getpid())
		debug.SetCrashOutput(crashFile, debug.CrashOptions{})
	}

	if *profileFlag != "" {
		go func() {
			fmt.Fprintf(os.Stderr, "pprof server listening on http://%s/debug/pprof/\n", *profileFlag)
			if err := http.ListenAndServe(*profileFlag, nil); err != nil {
				fmt.Fprintf(os.Stderr, "pprof server error: %v\n", err)
			}
		}()
	}

	if *crashFlag {
		panic("TEST CRASH: synthetic panic to verify crash logging")
	}

	if *versionFlag {
		fmt.Printf("traductor %s\n", version)
		return 0
	}

	cfg, err := config.Load(config.Options{ConfigFile: *configFlag, EnvFile: *envFlag})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	overrides := map[*string]string{
		&cfg.APIURL:    *apiFlag,
		&cfg.Token:     *tokenFlag,
		&cfg.Variant:   *variantFlag,
		&cfg.Container: *containerFlag,
	}
	for field, v := range overrides {
		if v != "" {
			*field = v
		}
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}
	defer log.Close()
	log.SessionStart(cfg.Variant, cfg.APIURL, cfg.Container)

	client, err := api.New(cfg.APIURL, cfg.Token, cfg.APITimeout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	client.Observe = observeCall

	var wavPath string
	if *testFlag {
		args := flag.Args()
		if len(args) == 0 {
			fmt.Fprintln(os.Stderr, "Usage: traductor -test <wav-file>")
			return 1
		}
		wavPath = args[0]
		fake, err := audio.NewFakeContext(wavPath, true)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading WAV: %v\n", err)
			return 1
		}
		audio.SetFactory(func() (audio.Context, error) { return fake, nil })
		*cuesFlag = false
	}

	device, err := pickDevice(*deviceFlag, *setupFlag)
	if err != nil {
		log.Warnf("device selection failed: %v", err)
		fmt.Fprintf(os.Stderr, "Warning: device selection failed: %v\n", err)
		fmt.Fprintln(os.Stderr, "Falling back to default device")
	}

	ctx, stop := shutdown.Context(context.Background())
	defer stop()

	if *doctorFlag {
		src, _ := lang.DefaultPair(cfg.LangVariant())
		return doctor.Run(ctx, os.Stdout, doctor.Options{
			Client:          client,
			Tools:           cfg.Tools(),
			Device:          device,
			Record:          3 * time.Second,
			Language:        src.Code,
			ASRModel:        cfg.ASRModel,
			ASRModelVersion: cfg.ASRModelVersion,
			Clipboard:       true,
		})
	}

	src, dst := resolvePair(ctx, client, cfg.LangVariant())

	var events eventQueue
	a := newApp(cfg, client, src, dst, &events, appOptions{Device: device, Cues: *cuesFlag})
	defer func() {
		a.Close()
		log.SessionEnd(a.Confirmed())
	}()

	if *testFlag {
		events.attach(printEvent)
		return runTestMode(ctx, a)
	}
	return runTUI(ctx, a, &events)
}

// pickDevice resolves -device by name, or prompts with -setup. nil means the
// system default.
func pickDevice(name string, setup bool) (*audio.DeviceInfo, error) {
	if name == "" && !setup {
		return nil, nil
	}
	shared := audio.Default()
	ctx, err := shared.Resume()
	if err != nil {
		return nil, err
	}
	defer shared.Suspend()

	if name == "" {
		return audio.SelectDevice(ctx)
	}
	devices, err := ctx.Devices()
	if err != nil {
		return nil, fmt.Errorf("enumerating devices: %w", err)
	}
	for i := range devices {
		if devices[i].Name == name {
			return &devices[i], nil
		}
	}
	return nil, fmt.Errorf("no capture device named %q", name)
}

// resolvePair starts from the variant's default pair and refreshes the
// target's details from the server when it is reachable.
func resolvePair(ctx context.Context, client *api.Client, v lang.Variant) (lang.Language, lang.Language) {
	src, dst := lang.DefaultPair(v)
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	langs, err := client.Languages(ctx, api.LanguageFilter{Code: dst.Prefix()})
	if err != nil {
		log.Warnf("languages: %v (using built-in list)", err)
		return src, dst
	}
	for _, l := range langs {
		if l.Code == dst.Code {
			return src, l
		}
	}
	return src, dst
}

func observeCall(c api.Call) {
	r := log.Request{
		Op:     c.Op,
		Method: c.Method,
		Path:   c.Path,
		Status: c.Status,
		Err:    c.Err,
	}
	if m := c.Metrics; m != nil {
		r.DNS = m.DNS
		r.TLS = m.TLS
		r.TTFB = m.TTFB
		r.Total = m.Total
		r.ConnReused = m.ConnReused
		r.TLSProto = m.TLSProtocol
	}
	log.RequestMetrics(r)
}
