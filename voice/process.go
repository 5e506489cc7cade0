package voice

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"traductor/api"
	"traductor/log"
	"traductor/media"
)

// Upload takes a user-chosen audio file instead of a recording. Type and
// size are checked before anything is decoded or sent.
func (c *Controller) Upload(ctx context.Context, name, mimeType string, data []byte) error {
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
	switch c.state {
	case StateIdle, StateReady, StateError:
	default:
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("%w: upload from %s", ErrInvalidState, state)
	}

	a, err := media.CheckUpload(name, mimeType, data, c.cfg.MaxUploadMB)
	if err != nil {
		code, msg := uploadNotice(err)
		c.noticeLocked(NoticeError, code, msg)
		c.resetLocked(StateIdle, ReasonInvalidUpload)
		c.mu.Unlock()
		return err
	}

	c.sessionID = uuid.NewString()
	c.resetLocked(StateProcessing, ReasonUploaded)
	gen := c.gen
	pctx, cancel := context.WithCancel(c.opCtx)
	c.mu.Unlock()

	stop := context.AfterFunc(ctx, cancel)
	go func() {
		defer stop()
		defer cancel()
		c.processArtifact(pctx, gen, a)
	}()
	return nil
}

func uploadNotice(err error) (NoticeCode, string) {
	switch {
	case errors.Is(err, media.ErrTooLarge):
		return CodeTooLarge, "File is too large: " + err.Error()
	case errors.Is(err, media.ErrEmpty):
		return CodeNoAudio, "The file contains no audio"
	default:
		return CodeUnsupportedType, "Unsupported audio type. Use webm, ogg, mp3, wav or mp4"
	}
}

// processArtifact measures the audio, trims it to the maximum duration and
// starts transcription.
func (c *Controller) processArtifact(ctx context.Context, gen uint64, a media.Artifact) {
	start := time.Now()
	t := c.cfg.Timing

	res, err := c.cfg.Tools.Probe(ctx, a, t.ProbeTimeout)
	if err != nil {
		if ctx.Err() != nil {
			c.abandonProcessing(gen)
			return
		}
		log.Warnf("voice: probe: %v", err)
		c.fail(gen, StateIdle, ReasonProcessingFailed, CodeProbeFailed, "Could not read the audio file")
		return
	}
	if res.MetadataErr != nil {
		log.Warnf("voice: duration metadata unavailable, decoded instead: %v", res.MetadataErr)
		c.notify(gen, NoticeWarning, CodeProbeFailed, "Audio length was not recorded in the file; measured it by decoding")
	}
	a.Duration = res.Duration

	limit := t.MaxDuration
	if limit <= 0 {
		limit = media.MaxDuration
	}
	if a.Duration > limit {
		trimmed, err := c.cfg.Tools.Trim(ctx, a, res.PCM, limit)
		if err != nil {
			if ctx.Err() != nil {
				c.abandonProcessing(gen)
				return
			}
			log.Warnf("voice: trim: %v", err)
			c.fail(gen, StateIdle, ReasonProcessingFailed, CodeProbeFailed, "Could not shorten the audio")
			return
		}
		a = trimmed
		c.notify(gen, NoticeWarning, CodeTruncated,
			fmt.Sprintf("Audio is longer than %s; only the first %s will be transcribed", limit, limit))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		return
	}
	log.RecordingMetrics(log.Recording{
		Session:     c.sessionID,
		Container:   string(a.Container),
		AudioS:      a.Duration.Seconds(),
		SizeKB:      float64(a.Size()) / 1024,
		Truncated:   a.Truncated,
		ProbeMethod: string(res.Method),
		ProcessMs:   float64(time.Since(start).Microseconds()) / 1000,
	})
	c.artifact = &a
	c.transitionLocked(StateTranscribing, ReasonProcessed)
	c.transcribeLocked(gen, a)
}

// abandonProcessing resets after the caller gave up on an upload while it
// was being measured or trimmed. A reset that already happened wins.
func (c *Controller) abandonProcessing(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		return
	}
	c.noticeLocked(NoticeCancelled, CodeProcessingCancelled, "Upload cancelled")
	c.resetLocked(StateIdle, ReasonCancelled)
}

// transcribeLocked issues the speech-to-text request. Any previous request
// is aborted first, and a result is dropped if the controller moved on.
func (c *Controller) transcribeLocked(gen uint64, a media.Artifact) {
	if c.cancelRequest != nil {
		c.cancelRequest()
	}
	ctx, cancel := context.WithCancel(c.opCtx)
	c.cancelRequest = cancel
	c.armLocked(timerSlow, c.cfg.Timing.SlowNotice, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.gen == gen && c.state == StateTranscribing {
			c.noticeLocked(NoticeInfo, CodeStillWorking, "Still transcribing, this can take a while")
		}
	})

	req := api.SpeechRequest{
		Audio:        a.Data,
		Filename:     a.Name,
		MIME:         a.MIME,
		Language:     c.cfg.Language,
		ModelName:    c.cfg.ASRModel,
		ModelVersion: c.cfg.ASRModelVersion,
	}
	go func() {
		res, err := c.stt.SpeechToText(ctx, req)

		c.mu.Lock()
		defer c.mu.Unlock()
		if c.gen != gen {
			return
		}
		cancel()
		c.cancelRequest = nil
		c.disarmLocked(timerSlow)

		if err != nil {
			if errors.Is(err, context.Canceled) {
				c.noticeLocked(NoticeCancelled, CodeTranscriptionCancelled, "Transcription cancelled")
				c.resetLocked(StateIdle, ReasonTranscriptionCancelled)
				return
			}
			log.Errorf("voice: transcription: %v", err)
			msg := "Transcription failed: " + err.Error()
			if errors.Is(err, api.ErrUnauthorized) {
				msg = "Please sign in to use voice transcription"
			}
			c.noticeLocked(NoticeError, CodeTranscriptionFailed, msg)
			c.resetLocked(StateError, ReasonTranscriptionFailed)
			return
		}

		transcript := strings.TrimSpace(res.Text)
		d := Draft{Text: transcript, Transcript: transcript, Side: c.side, RecordID: res.ID}
		if c.cfg.BlankDraft {
			d.Text = ""
		}
		c.draft = &d
		log.Transcription(string(d.Side), transcript)
		c.transitionLocked(StateReviewing, ReasonTranscribed)
		c.events.post(func() { c.sink.DraftReady(d) })
	}()
}
