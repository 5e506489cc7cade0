package voice

import (
	"context"
	"errors"
	"fmt"
	"time"

	"traductor/audio"
	"traductor/log"
	"traductor/media"
)

// Start acquires the microphone and begins recording. It returns once the
// controller is in the recording state, or with the reason it is not.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.busy {
		c.noticeLocked(NoticeWarning, CodeBusy, "Microphone is already starting")
		c.mu.Unlock()
		return ErrBusy
	}
	if c.state != StateReady {
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("%w: start from %s", ErrInvalidState, state)
	}
	if !c.lastEnd.IsZero() && time.Since(c.lastEnd) < c.cfg.Timing.Cooldown {
		c.noticeLocked(NoticeInfo, CodeCooldown, "Microphone is settling, try again in a moment")
		c.mu.Unlock()
		return ErrCooldown
	}
	c.busy = true
	gen := c.gen
	device, capCfg := c.cfg.Device, c.cfg.Capture
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.busy = false
		c.mu.Unlock()
	}()

	actx, err := c.audio.Resume()
	if err != nil {
		c.fail(gen, StateError, ReasonMicUnavailable, CodeUnsupported, "Audio recording is not supported on this system")
		return err
	}
	capture, err := actx.NewCapture(device, capCfg)
	if err != nil {
		c.fail(gen, StateError, ReasonMicUnavailable, micCode(err), micMessage(err))
		return err
	}

	s := newSession(capture, func(rms float64) {
		c.events.post(func() { c.sink.Level(rms) })
	})
	capture.SetCallback(s.onAudio)

	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		capture.Close()
		return ErrCancelled
	}
	c.sess = s
	c.sessionID = s.id
	c.mu.Unlock()
	log.Infof("voice: mic acquired (%s)", capture.DeviceName())

	if err := capture.Start(); err != nil {
		c.fail(gen, StateError, ReasonMicUnavailable, micCode(err), micMessage(err))
		return err
	}

	if err := c.waitForInput(ctx, s); err != nil {
		if ctx.Err() != nil {
			c.mu.Lock()
			if c.gen == gen {
				c.resetLocked(StateReady, ReasonCancelled)
			}
			c.mu.Unlock()
		}
		return err
	}

	c.mu.Lock()
	if c.gen != gen || c.sess != s {
		c.mu.Unlock()
		return ErrCancelled
	}
	t := c.cfg.Timing
	s.begin(t.FlushInterval)
	c.transitionLocked(StateRecording, ReasonRecordingStarted)
	c.armLocked(timerMaxDuration, t.MaxDuration, func() { c.autoStop(gen) })
	c.mu.Unlock()

	go c.tick(gen, s, t.TickInterval)
	c.cue(audio.CueStart)
	return nil
}

// waitForInput holds recording back until the track delivers data, the
// signal rises above the energy threshold and the pre-roll elapses. The
// unmute and energy waits are bounded; recording proceeds after them
// regardless.
func (c *Controller) waitForInput(ctx context.Context, s *session) error {
	t := c.cfg.Timing

	select {
	case <-s.unmuted:
	case <-time.After(t.UnmuteTimeout):
		log.Warn("voice: track still muted, recording anyway")
	case <-s.done:
		return ErrCancelled
	case <-ctx.Done():
		return ctx.Err()
	}

	step := t.EnergyStep
	if step <= 0 {
		step = t.EnergyWindow
	}
	deadline := time.Now().Add(t.EnergyWindow)
	ticker := time.NewTicker(step)
	defer ticker.Stop()
gate:
	for time.Now().Before(deadline) {
		select {
		case <-ticker.C:
		case <-s.done:
			return ErrCancelled
		case <-ctx.Done():
			return ctx.Err()
		}
		if rms, ok := s.takeEnergy(); ok && rms >= t.EnergyThreshold {
			break gate
		}
	}

	if t.PreRoll > 0 {
		select {
		case <-time.After(t.PreRoll):
		case <-s.done:
			return ErrCancelled
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// tick reports elapsed time and warns when the microphone hears nothing
// for the SilenceWarn window.
func (c *Controller) tick(gen uint64, s *session, interval time.Duration) {
	if interval <= 0 {
		return
	}
	t := c.cfg.Timing
	var mon *silenceMonitor
	if t.SilenceWarn > 0 {
		mon = newSilenceMonitor(t.SilenceWarn, interval)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.ended:
			return
		case <-ticker.C:
			elapsed := time.Since(s.startedAt)
			c.events.post(func() { c.sink.Tick(elapsed) })
			if mon == nil {
				continue
			}
			peak := s.takePeak()
			switch mon.Tick(peak > 0 && peak >= t.EnergyThreshold) {
			case silenceWarn:
				c.notify(gen, NoticeWarning, CodeNoVoice, "No voice detected, check the microphone")
			case silenceClear:
				log.Info("voice: speech resumed")
			}
		}
	}
}

// Stop ends recording. Very short recordings are discarded and the
// controller returns to ready; otherwise the audio is processed and sent
// for transcription.
func (c *Controller) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateRecording || c.sess == nil {
		return fmt.Errorf("%w: stop from %s", ErrInvalidState, c.state)
	}
	c.stopLocked(ReasonStopped)
	return nil
}

func (c *Controller) autoStop(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen || c.state != StateRecording || c.sess == nil {
		return
	}
	c.noticeLocked(NoticeInfo, CodeAutoStopped, fmt.Sprintf("Recording stopped at the %s limit", c.cfg.Timing.MaxDuration))
	c.stopLocked(ReasonAutoStopped)
}

func (c *Controller) stopLocked(reason Reason) {
	s := c.sess
	t := c.cfg.Timing
	c.disarmLocked(timerMaxDuration)
	s.endRecording()

	if time.Since(s.startedAt) < t.QuickCancel {
		c.noticeLocked(NoticeInfo, CodeTooShort, "Recording too short, discarded")
		c.resetLocked(StateReady, ReasonQuickCancel)
		return
	}

	gen := c.gen
	c.transitionLocked(StateProcessing, reason)
	c.armLocked(timerSafeguard, t.Safeguard, func() { c.safeguard(gen) })
	go c.finish(c.opCtx, gen, s)
}

// finish waits for the capture to stop, collects the final chunk and
// hands the audio to processing.
func (c *Controller) finish(ctx context.Context, gen uint64, s *session) {
	s.release()
	chunks := s.rec.stop()
	c.cue(audio.CueStop)

	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return
	}
	c.disarmLocked(timerSafeguard)
	c.sess = nil
	c.lastEnd = time.Now()
	c.audio.Suspend()
	sampleRate := int(c.cfg.Capture.SampleRate)
	container := c.cfg.Container
	c.mu.Unlock()

	select {
	case <-time.After(c.cfg.Timing.Settle):
	case <-ctx.Done():
		return
	}

	var pcm []byte
	for _, ch := range chunks {
		pcm = append(pcm, ch...)
	}
	if len(pcm) == 0 {
		c.fail(gen, StateIdle, ReasonNoAudio, CodeNoAudio, "No audio was captured")
		return
	}

	a, err := media.Encode(container, media.FromBytes(pcm, sampleRate))
	if err != nil {
		log.Errorf("voice: encode: %v", err)
		c.fail(gen, StateIdle, ReasonProcessingFailed, CodeProbeFailed, "Could not prepare the recording")
		return
	}
	c.processArtifact(ctx, gen, a)
}

// safeguard forces idle when the recorder never acknowledged the stop.
func (c *Controller) safeguard(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen || c.state != StateProcessing || c.sess == nil {
		return
	}
	log.Warn("voice: recorder did not stop in time")
	c.noticeLocked(NoticeWarning, CodeStalled, "Recording did not finish, please try again")
	c.resetLocked(StateIdle, ReasonSafeguard)
}

func micCode(err error) NoticeCode {
	if errors.Is(err, audio.ErrPermissionDenied) {
		return CodePermissionDenied
	}
	return CodeUnsupported
}

func micMessage(err error) string {
	if errors.Is(err, audio.ErrPermissionDenied) {
		return "Microphone access was denied"
	}
	return "Could not open the microphone: " + err.Error()
}
