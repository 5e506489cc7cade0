package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"traductor/log"
	"traductor/voice"
)

const waitTimeout = 20 * time.Second

// runTestMode drives the app from stdin, one command per line:
//
//	OPEN | START | STOP | CANCEL | RERECORD | CONFIRM | PLAY
//	SIDE source|target | EDIT <text> | UPLOAD <path>
//	TRANSLATE | SWAP | WAIT <state> | WAIT_TRANSLATION | SLEEP <ms> | QUIT
//
// Events are printed to stdout as they happen. WAIT commands fail the run
// when the expected state is not reached in time.
func runTestMode(ctx context.Context, a *app) int {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return 0
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		cmd, arg, _ := strings.Cut(line, " ")
		arg = strings.TrimSpace(arg)

		var err error
		switch cmd {
		case "OPEN":
			err = a.voice.Open()
		case "START":
			err = a.Record(ctx)
		case "STOP":
			err = a.voice.Stop()
		case "CANCEL":
			a.voice.Cancel()
		case "RERECORD":
			err = a.voice.ReRecord()
		case "CONFIRM":
			err = a.voice.Confirm(ctx)
		case "PLAY":
			var path string
			path, err = a.voice.PlayArtifact(ctx)
			if err == nil {
				fmt.Printf("PLAYING %s\n", path)
			}
		case "SIDE":
			err = a.voice.SetSide(voice.Side(arg))
		case "EDIT":
			err = a.voice.Edit(arg)
		case "UPLOAD":
			err = a.Upload(ctx, arg)
		case "TRANSLATE":
			err = a.text.Translate(ctx)
		case "SWAP":
			err = a.text.Swap()
		case "WAIT":
			if !waitFor(ctx, func() bool { return a.voice.State() == voice.State(arg) }) {
				fmt.Printf("TIMEOUT waiting for %s (state %s)\n", arg, a.voice.State())
				return 1
			}
		case "WAIT_TRANSLATION":
			if !waitFor(ctx, func() bool {
				st := a.text.State()
				return !st.Loading && st.DstText != ""
			}) {
				fmt.Println("TIMEOUT waiting for translation")
				return 1
			}
		case "SLEEP":
			if ms, convErr := strconv.Atoi(arg); convErr == nil {
				time.Sleep(time.Duration(ms) * time.Millisecond)
			}
		case "QUIT":
			// Let queued events print before exiting.
			time.Sleep(50 * time.Millisecond)
			return 0
		default:
			err = fmt.Errorf("unknown command %q", cmd)
		}
		if err != nil {
			log.Warnf("test command %s: %v", cmd, err)
			fmt.Printf("ERROR %s: %v\n", cmd, err)
		}
	}
	return 0
}

func waitFor(ctx context.Context, cond func() bool) bool {
	deadline := time.Now().Add(waitTimeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(10 * time.Millisecond):
		}
	}
	return false
}
