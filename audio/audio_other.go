//go:build !linux

package audio

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"
)

type malgoContext struct {
	ctx *malgo.AllocatedContext
}

func NewContext() (Context, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, err
	}
	return &malgoContext{ctx: ctx}, nil
}

// Devices lists capture devices with the system default first.
func (m *malgoContext) Devices() ([]DeviceInfo, error) {
	devices, err := m.ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("malgo devices: %w", err)
	}
	result := make([]DeviceInfo, 0, len(devices))
	for _, d := range devices {
		info := DeviceInfo{ID: hex.EncodeToString(d.ID.Pointer()[:]), Name: d.Name()}
		if d.IsDefault != 0 {
			result = append([]DeviceInfo{info}, result...)
			continue
		}
		result = append(result, info)
	}
	return result, nil
}

func deviceID(info *DeviceInfo) (malgo.DeviceID, error) {
	var id malgo.DeviceID
	raw, err := hex.DecodeString(info.ID)
	if err != nil {
		return id, fmt.Errorf("invalid device ID %q: %w", info.ID, err)
	}
	copy(id[:], raw)
	return id, nil
}

func (m *malgoContext) NewCapture(device *DeviceInfo, config CaptureConfig) (CaptureDevice, error) {
	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = config.Channels
	deviceConfig.SampleRate = config.SampleRate

	c := &malgoCapture{name: "system default"}
	if device != nil {
		id, err := deviceID(device)
		if err != nil {
			return nil, err
		}
		deviceConfig.Capture.DeviceID = id.Pointer()
		c.name = device.Name
	}

	dev, err := malgo.InitDevice(m.ctx.Context, deviceConfig, malgo.DeviceCallbacks{Data: c.onData})
	if err != nil {
		return nil, fmt.Errorf("malgo capture on %s: %w", c.name, err)
	}
	c.device = dev
	return c, nil
}

func (m *malgoContext) NewPlayer() (Player, error) {
	return &malgoPlayer{ctx: m.ctx}, nil
}

func (m *malgoContext) Close() {
	m.ctx.Uninit()
	m.ctx.Free()
}

type malgoCapture struct {
	device   *malgo.Device
	name     string
	callback atomic.Pointer[DataCallback]
}

func (c *malgoCapture) onData(_, data []byte, frameCount uint32) {
	if cb := c.callback.Load(); cb != nil {
		(*cb)(data, frameCount)
	}
}

func (c *malgoCapture) Start() error {
	return c.device.Start()
}

func (c *malgoCapture) Stop() {
	c.device.Stop()
}

func (c *malgoCapture) Close() {
	c.device.Uninit()
}

func (c *malgoCapture) SetCallback(cb DataCallback) {
	c.callback.Store(&cb)
}

func (c *malgoCapture) ClearCallback() {
	c.callback.Store(nil)
}

func (c *malgoCapture) DeviceName() string { return c.name }

type malgoPlayer struct {
	ctx *malgo.AllocatedContext

	mu     sync.Mutex
	device *malgo.Device
	stop   chan struct{}
}

func (p *malgoPlayer) Play(samples []float32, sampleRate int) error {
	if len(samples) == 0 {
		return nil
	}
	cfg := malgo.DefaultDeviceConfig(malgo.Playback)
	cfg.Playback.Format = malgo.FormatF32
	cfg.Playback.Channels = 1
	cfg.SampleRate = uint32(sampleRate)

	done := make(chan struct{})
	var once sync.Once
	pos := 0
	callbacks := malgo.DeviceCallbacks{
		Data: func(out, _ []byte, frameCount uint32) {
			for i := 0; i < int(frameCount); i++ {
				var v float32
				if pos < len(samples) {
					v = samples[pos]
					pos++
				}
				binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(v))
			}
			if pos >= len(samples) {
				once.Do(func() { close(done) })
			}
		},
	}
	dev, err := malgo.InitDevice(p.ctx.Context, cfg, callbacks)
	if err != nil {
		return fmt.Errorf("malgo playback: %w", err)
	}
	stop := make(chan struct{})
	p.mu.Lock()
	p.device = dev
	p.stop = stop
	p.mu.Unlock()

	if err := dev.Start(); err != nil {
		dev.Uninit()
		return fmt.Errorf("malgo playback start: %w", err)
	}
	select {
	case <-done:
	case <-stop:
	}
	dev.Stop()
	dev.Uninit()

	p.mu.Lock()
	p.device = nil
	p.stop = nil
	p.mu.Unlock()
	return nil
}

func (p *malgoPlayer) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stop != nil {
		close(p.stop)
		p.stop = nil
	}
}
