package reactive

import (
	"fmt"
	"log"
	"sync/atomic"

	"github.com/gordonklaus/portaudio"
)

// Microphone captures mono float32 chunks from the default input device.
type Microphone struct {
	sampleRate int
	stream     *portaudio.Stream
	chunks     chan []float32
	running    bool
	dropped    atomic.Int64
}

// NewMicrophone initializes PortAudio. Terminate is paired with Stop, or with
// a failed Start.
func NewMicrophone(sampleRate int) (*Microphone, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize portaudio: %w", err)
	}
	return &Microphone{sampleRate: sampleRate}, nil
}

// capture runs on the PortAudio thread; it must not block.
func (m *Microphone) capture(in []float32) {
	chunk := append([]float32(nil), in...)
	select {
	case m.chunks <- chunk:
	default:
		if n := m.dropped.Add(1); n == 1 || n%100 == 0 {
			log.Printf("Warning: analyzer is behind, %d audio chunks dropped", n)
		}
	}
}

func (m *Microphone) Start() (<-chan []float32, error) {
	if m.running {
		return m.chunks, nil
	}
	stream, err := m.open()
	if err != nil {
		portaudio.Terminate()
		return nil, err
	}
	m.stream = stream
	m.running = true
	log.Printf("Microphone capture started at %d Hz", m.sampleRate)
	return m.chunks, nil
}

func (m *Microphone) open() (*portaudio.Stream, error) {
	host, err := portaudio.DefaultHostApi()
	if err != nil {
		return nil, fmt.Errorf("no audio host: %w", err)
	}
	if host.DefaultInputDevice == nil {
		return nil, fmt.Errorf("no default input device on %s", host.Name)
	}
	params := portaudio.LowLatencyParameters(host.DefaultInputDevice, nil)
	params.Input.Channels = 1
	params.SampleRate = float64(m.sampleRate)

	m.chunks = make(chan []float32, 16)
	stream, err := portaudio.OpenStream(params, m.capture)
	if err != nil {
		return nil, fmt.Errorf("failed to open input stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return nil, fmt.Errorf("failed to start input stream: %w", err)
	}
	return stream, nil
}

// Stop closes the stream, then the chunk channel. It is safe to call more
// than once.
func (m *Microphone) Stop() error {
	if !m.running {
		return nil
	}
	m.running = false
	err := m.stream.Close()
	close(m.chunks)
	if terr := portaudio.Terminate(); err == nil {
		err = terr
	}
	return err
}

func (m *Microphone) SampleRate() int { return m.sampleRate }
