//go:build linux

package audio

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/jfreymuth/pulse"
	"github.com/jfreymuth/pulse/proto"
)

type pulseContext struct {
	client *pulse.Client
}

func NewContext() (Context, error) {
	c, err := pulse.NewClient(pulse.ClientApplicationName("traductor"))
	if err != nil {
		return nil, fmt.Errorf("pulse: %w", err)
	}
	return &pulseContext{client: c}, nil
}

// Devices lists pulse sources with the server default first.
func (p *pulseContext) Devices() ([]DeviceInfo, error) {
	sources, err := p.client.ListSources()
	if err != nil {
		return nil, fmt.Errorf("pulse list sources: %w", err)
	}
	defaultID := ""
	if d, err := p.client.DefaultSource(); err == nil && d != nil {
		defaultID = d.ID()
	}
	devices := make([]DeviceInfo, 0, len(sources))
	for _, s := range sources {
		info := DeviceInfo{ID: s.ID(), Name: s.Name()}
		if info.ID == defaultID {
			devices = append([]DeviceInfo{info}, devices...)
			continue
		}
		devices = append(devices, info)
	}
	return devices, nil
}

func (p *pulseContext) NewCapture(device *DeviceInfo, config CaptureConfig) (CaptureDevice, error) {
	return &pulseCapture{client: p.client, device: device, config: config}, nil
}

func (p *pulseContext) NewPlayer() (Player, error) {
	return &pulsePlayer{client: p.client}, nil
}

func (p *pulseContext) Close() {
	p.client.Close()
}

type pulseCapture struct {
	client   *pulse.Client
	device   *DeviceInfo
	config   CaptureConfig
	callback atomic.Pointer[DataCallback]

	mu     sync.Mutex
	stream *pulse.RecordStream
}

func (c *pulseCapture) recordOptions() []pulse.RecordOption {
	opts := []pulse.RecordOption{
		pulse.RecordMono,
		pulse.RecordSampleRate(int(c.config.SampleRate)),
		pulse.RecordLatency(0.05),
		pulse.RecordMediaName("traductor voice capture"),
	}
	if c.config.Constraints.AutoGainControl {
		opts = append(opts, pulse.RecordRawOption(func(r *proto.CreateRecordStream) {
			r.ChannelVolumes = proto.ChannelVolumes{uint32(proto.VolumeNorm) * 3}
		}))
	}
	if c.device != nil {
		if source, err := c.client.SourceByID(c.device.ID); err == nil && source != nil {
			opts = append(opts, pulse.RecordSource(source))
		}
	}
	return opts
}

// deliver hands one pulse buffer to the current callback.
func (c *pulseCapture) deliver(buf []int16, gain int32) (int, error) {
	cb := c.callback.Load()
	if cb == nil || len(buf) == 0 {
		return len(buf), nil
	}
	data := make([]byte, len(buf)*2)
	putPCM16(data, buf, gain)
	(*cb)(data, uint32(len(buf)))
	return len(buf), nil
}

func (c *pulseCapture) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stream != nil {
		return nil
	}

	gain := gainFor(c.config.Constraints)
	writer := pulse.Int16Writer(func(buf []int16) (int, error) {
		return c.deliver(buf, gain)
	})
	stream, err := c.client.NewRecord(writer, c.recordOptions()...)
	if err != nil {
		return fmt.Errorf("pulse record on %s: %w", c.DeviceName(), err)
	}
	stream.Start()
	c.stream = stream
	return nil
}

func (c *pulseCapture) Stop() {
	c.mu.Lock()
	stream := c.stream
	c.stream = nil
	c.mu.Unlock()
	if stream != nil {
		stream.Stop()
		stream.Close()
	}
}

func (c *pulseCapture) Close() {
	c.ClearCallback()
	c.Stop()
}

func (c *pulseCapture) SetCallback(cb DataCallback) {
	c.callback.Store(&cb)
}

func (c *pulseCapture) ClearCallback() {
	c.callback.Store(nil)
}

func (c *pulseCapture) DeviceName() string {
	if c.device != nil {
		return c.device.Name
	}
	return "system default"
}

type pulsePlayer struct {
	client *pulse.Client
	mu     sync.Mutex
	stream *pulse.PlaybackStream
}

func (p *pulsePlayer) Play(samples []float32, sampleRate int) error {
	if len(samples) == 0 {
		return nil
	}
	pos := 0
	reader := pulse.Float32Reader(func(buf []float32) (int, error) {
		if pos >= len(samples) {
			return 0, pulse.EndOfData
		}
		n := copy(buf, samples[pos:])
		pos += n
		return n, nil
	})
	stream, err := p.client.NewPlayback(reader,
		pulse.PlaybackMono,
		pulse.PlaybackSampleRate(sampleRate),
		pulse.PlaybackLatency(0.1),
	)
	if err != nil {
		return fmt.Errorf("pulse playback: %w", err)
	}
	p.mu.Lock()
	p.stream = stream
	p.mu.Unlock()

	stream.Start()
	stream.Drain()
	stream.Stop()
	stream.Close()

	p.mu.Lock()
	p.stream = nil
	p.mu.Unlock()
	return nil
}

func (p *pulsePlayer) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stream != nil {
		p.stream.Stop()
	}
}
