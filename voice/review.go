package voice

import (
	"context"
	"fmt"
	"strings"

	"traductor/log"
	"traductor/media"
)

// Edit replaces the draft text while reviewing.
func (c *Controller) Edit(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateReviewing || c.draft == nil {
		return fmt.Errorf("%w: edit from %s", ErrInvalidState, c.state)
	}
	if c.confirming {
		return fmt.Errorf("%w: draft is being confirmed", ErrBusy)
	}
	c.draft.Text = text
	return nil
}

// ReRecord discards the draft and its audio and goes back to ready.
func (c *Controller) ReRecord() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateReviewing {
		return fmt.Errorf("%w: re-record from %s", ErrInvalidState, c.state)
	}
	c.resetLocked(StateReady, ReasonReRecord)
	return nil
}

// Confirm validates the reviewed text with the server, at most once, and
// hands it to the translator. A failed validation is reported but does not
// block the hand-off. The draft stays visible, but frozen, until the reset.
func (c *Controller) Confirm(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateReviewing || c.draft == nil {
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("%w: confirm from %s", ErrInvalidState, state)
	}
	if c.confirming {
		c.mu.Unlock()
		return fmt.Errorf("%w: already confirming", ErrBusy)
	}
	c.confirming = true
	d := *c.draft
	d.Text = strings.TrimSpace(d.Text)
	gen := c.gen
	c.mu.Unlock()

	if d.RecordID != nil {
		if err := c.stt.ValidateTranscription(ctx, *d.RecordID, d.Text); err != nil {
			log.Warnf("voice: validate transcription %d: %v", *d.RecordID, err)
			c.notify(gen, NoticeWarning, CodeValidationFailed, "Could not save the corrected transcript; continuing")
		}
	}

	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return ErrCancelled
	}
	c.resetLocked(StateIdle, ReasonConfirmed)
	c.mu.Unlock()

	if c.handoff != nil {
		c.handoff.HandOff(d.Text, d.Side == SideTarget)
	}
	return nil
}

// PlayArtifact plays the reviewed audio locally. The audio is written to a
// temp file for the duration of playback and removed afterwards. It
// returns that file's path.
func (c *Controller) PlayArtifact(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.state != StateReviewing || c.artifact == nil {
		state := c.state
		c.mu.Unlock()
		return "", fmt.Errorf("%w: play from %s", ErrInvalidState, state)
	}
	a := *c.artifact
	if c.playback != nil {
		c.playback()
	}
	pctx, cancel := context.WithCancel(ctx)
	c.playback = cancel
	c.mu.Unlock()

	path, err := c.res.Register(a.Data, a.Container.Ext())
	if err != nil {
		cancel()
		return "", err
	}
	pcm, err := c.cfg.Tools.Decode(pctx, a)
	if err != nil {
		cancel()
		c.res.Release(path)
		return "", fmt.Errorf("decoding for playback: %w", err)
	}
	actx, err := c.audio.Resume()
	if err != nil {
		cancel()
		c.res.Release(path)
		return "", err
	}
	player, err := actx.NewPlayer()
	if err != nil {
		cancel()
		c.res.Release(path)
		return "", err
	}

	go func() {
		defer c.res.Release(path)
		defer cancel()
		if pctx.Err() != nil {
			return
		}
		stop := context.AfterFunc(pctx, player.Close)
		defer stop()
		if err := player.Play(media.Float32(pcm.Samples), pcm.SampleRate); err != nil {
			log.Warnf("voice: playback: %v", err)
		}
	}()
	return path, nil
}
