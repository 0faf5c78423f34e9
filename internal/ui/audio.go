package ui

import (
	"encoding/binary"
	"sync"
	"time"
)

// sampleQueue is a small thread-safe ring buffer bridging the CORE's
// push-based audio sink (invoked from the CORE's own goroutine) to
// ebiten/audio's pull-based io.Reader interface (invoked from the audio
// playback goroutine).
type sampleQueue struct {
	mu         sync.Mutex
	l, r       []float32
	head, tail int
}

func newSampleQueue(capacity int) *sampleQueue {
	return &sampleQueue{l: make([]float32, capacity), r: make([]float32, capacity)}
}

// push is installed as the gba.Core audio sink; it drops the tail of a
// batch rather than blocking if the consumer has fallen behind.
func (q *sampleQueue) push(l, r []float32) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i := range l {
		next := (q.head + 1) % len(q.l)
		if next == q.tail {
			return
		}
		q.l[q.head] = l[i]
		q.r[q.head] = r[i]
		q.head = next
	}
}

func (q *sampleQueue) pull(max int) (l, r []float32) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(l) < max && q.tail != q.head {
		l = append(l, q.l[q.tail])
		r = append(r, q.r[q.tail])
		q.tail = (q.tail + 1) % len(q.l)
	}
	return l, r
}

// apuStream implements io.Reader, converting the queue's float32 stereo
// frames into 16-bit little-endian stereo frames for ebiten/audio.
type apuStream struct {
	q          *sampleQueue
	lowLatency bool
	muted      *bool
}

func (s *apuStream) Read(p []byte) (int, error) {
	if len(p) < 4 {
		for i := range p {
			p[i] = 0
		}
		return len(p), nil
	}
	if s.muted != nil && *s.muted {
		for i := range p {
			p[i] = 0
		}
		return len(p), nil
	}
	maxFrames := len(p) / 4
	l, r := s.q.pull(maxFrames)
	i := 0
	for j := range l {
		binary.LittleEndian.PutUint16(p[i:], uint16(int16(l[j]*32767)))
		binary.LittleEndian.PutUint16(p[i+2:], uint16(int16(r[j]*32767)))
		i += 4
	}
	// Pad any shortfall with silence instead of blocking; at 48kHz a short
	// underrun is inaudible and better than stalling ebiten's audio callback.
	for ; i+3 < len(p); i += 4 {
		binary.LittleEndian.PutUint16(p[i:], 0)
		binary.LittleEndian.PutUint16(p[i+2:], 0)
	}
	return len(p), nil
}

// applyPlayerBufferSize sets the audio player's internal buffer to a small
// size for low latency: ~20ms in low-latency mode, ~40ms otherwise.
func (a *App) applyPlayerBufferSize() {
	if a.audioPlayer == nil {
		return
	}
	bufMs := 40
	if a.cfg.AudioLowLatency {
		bufMs = 20
	}
	a.audioPlayer.SetBufferSize(time.Duration(bufMs) * time.Millisecond)
}
