package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"
	"sync"

	"github.com/gordonklaus/portaudio"

	"github.com/sorvik/glossa/pkg/logger"
)

// ChunkFunc receives one captured chunk of raw PCM16 audio. Returning false
// stops capture. The callback runs on the capture goroutine and must not
// block.
type ChunkFunc func(chunk []byte) bool

// Supplier produces fixed-size audio chunks at a steady rate and hands each
// one to a ChunkFunc
type Supplier interface {
	Start() error
	Stop() error
}

// CaptureConfig holds microphone capture parameters
type CaptureConfig struct {
	SampleRate int    // Samples per second
	Channels   int    // 1 for mono, 2 for stereo
	ChunkMs    int    // Duration of one chunk in milliseconds
	Device     string // Input device name substring; empty selects the default
}

// MicSupplier captures audio from a PortAudio input device and delivers it
// in fixed-duration chunks
type MicSupplier struct {
	cfg     CaptureConfig
	onChunk ChunkFunc
	logger  *logger.Logger

	mu       sync.Mutex
	stream   *portaudio.Stream
	stopChan chan struct{}
	doneChan chan struct{}
	started  bool
}

// NewMicSupplier creates a microphone supplier. Capture does not begin until
// Start is called.
func NewMicSupplier(cfg CaptureConfig, onChunk ChunkFunc, log *logger.Logger) *MicSupplier {
	return &MicSupplier{
		cfg:     cfg,
		onChunk: onChunk,
		logger:  log.Named("mic"),
	}
}

// Start opens the input device and begins delivering chunks
func (m *MicSupplier) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return fmt.Errorf("capture already started")
	}

	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize portaudio: %w", err)
	}

	frames := m.cfg.SampleRate * m.cfg.ChunkMs / 1000
	buf := make([]int16, frames*m.cfg.Channels)

	stream, err := m.openStream(frames, buf)
	if err != nil {
		portaudio.Terminate()
		return err
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return fmt.Errorf("failed to start audio stream: %w", err)
	}

	m.logger.Info("Microphone capture started",
		logger.Int("sample_rate", m.cfg.SampleRate),
		logger.Int("channels", m.cfg.Channels),
		logger.Int("chunk_ms", m.cfg.ChunkMs),
		logger.Int("chunk_bytes", len(buf)*2))

	m.stream = stream
	m.stopChan = make(chan struct{})
	m.doneChan = make(chan struct{})
	m.started = true

	go m.captureLoop(stream, buf)
	return nil
}

func (m *MicSupplier) openStream(frames int, buf []int16) (*portaudio.Stream, error) {
	if m.cfg.Device == "" {
		stream, err := portaudio.OpenDefaultStream(m.cfg.Channels, 0, float64(m.cfg.SampleRate), frames, buf)
		if err != nil {
			return nil, fmt.Errorf("failed to open default input device: %w", err)
		}
		return stream, nil
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to list audio devices: %w", err)
	}

	var device *portaudio.DeviceInfo
	for _, d := range devices {
		if d.MaxInputChannels >= m.cfg.Channels &&
			strings.Contains(strings.ToLower(d.Name), strings.ToLower(m.cfg.Device)) {
			device = d
			break
		}
	}
	if device == nil {
		return nil, fmt.Errorf("no input device matching %q", m.cfg.Device)
	}

	m.logger.Info("Selected input device", logger.String("name", device.Name))

	params := portaudio.LowLatencyParameters(device, nil)
	params.Input.Channels = m.cfg.Channels
	params.SampleRate = float64(m.cfg.SampleRate)
	params.FramesPerBuffer = frames

	stream, err := portaudio.OpenStream(params, buf)
	if err != nil {
		return nil, fmt.Errorf("failed to open input device %q: %w", device.Name, err)
	}
	return stream, nil
}

func (m *MicSupplier) captureLoop(stream *portaudio.Stream, buf []int16) {
	defer close(m.doneChan)

	for {
		select {
		case <-m.stopChan:
			return
		default:
		}

		if err := stream.Read(); err != nil {
			if err == portaudio.InputOverflowed {
				// Samples were lost upstream of us; keep going
				m.logger.Warn("Input overflow, audio dropped by device")
				continue
			}
			select {
			case <-m.stopChan:
				// Abort unblocked the read; normal shutdown
			default:
				m.logger.Error("Audio read failed, stopping capture", logger.Error(err))
			}
			return
		}

		if !m.onChunk(int16ToBytes(buf)) {
			m.logger.Debug("Chunk callback requested stop")
			return
		}
	}
}

// Stop ends capture and releases the device. Safe to call once after Start.
func (m *MicSupplier) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.started {
		return nil
	}
	m.started = false

	close(m.stopChan)
	// Abort unblocks a pending Read so the loop can observe the stop signal
	m.stream.Abort()
	<-m.doneChan

	err := m.stream.Close()
	portaudio.Terminate()

	m.logger.Info("Microphone capture stopped")
	if err != nil {
		return fmt.Errorf("failed to close audio stream: %w", err)
	}
	return nil
}

// int16ToBytes converts samples to little-endian PCM16 bytes, the wire and
// file format used throughout
func int16ToBytes(samples []int16) []byte {
	buf := bytes.NewBuffer(make([]byte, 0, len(samples)*2))
	binary.Write(buf, binary.LittleEndian, samples)
	return buf.Bytes()
}
