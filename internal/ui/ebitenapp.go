package ui

import (
	"fmt"
	"sync"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/audio"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"github.com/retrocore-emu/gbacore/internal/gba"
	"github.com/retrocore-emu/gbacore/internal/keypad"
	"github.com/retrocore-emu/gbacore/internal/ppu"
)

const (
	screenW = 240
	screenH = 160
)

// keyBindings maps keypad.Button's iota order (A, B, Select, Start, Right,
// Left, Up, Down, R, L) onto a default keyboard layout.
var keyBindings = [10]ebiten.Key{
	ebiten.KeyZ,          // A
	ebiten.KeyX,          // B
	ebiten.KeyShiftRight, // Select
	ebiten.KeyEnter,      // Start
	ebiten.KeyRight,
	ebiten.KeyLeft,
	ebiten.KeyUp,
	ebiten.KeyDown,
	ebiten.KeyS, // R
	ebiten.KeyA, // L
}

// App is the ebiten-driven host window wrapping a *gba.Core: it runs the
// CORE on its own goroutine and pulls frames/audio out through the sinks
// Core.Run documents as the only safe cross-goroutine contact points.
type App struct {
	cfg  Config
	core *gba.Core

	mu     sync.Mutex
	pixels []byte // RGBA, screenW*screenH*4
	tex    *ebiten.Image

	audioQueue  *sampleQueue
	audioCtx    *audio.Context
	audioPlayer *audio.Player
	muted       bool

	keys [10]bool
}

// NewApp builds the window and wires Core's sinks to the App's buffers. The
// caller still must run core.Run() (typically on its own goroutine) before
// or concurrently with Run.
func NewApp(cfg Config, core *gba.Core) *App {
	cfg.Defaults()
	a := &App{
		cfg:        cfg,
		core:       core,
		pixels:     make([]byte, screenW*screenH*4),
		tex:        ebiten.NewImage(screenW, screenH),
		audioQueue: newSampleQueue(1 << 14),
	}
	core.SetFramebufferSink(a.onFrame)
	core.SetAudioSink(a.audioQueue.push)

	ebiten.SetWindowTitle(cfg.Title)
	ebiten.SetWindowSize(screenW*cfg.Scale, screenH*cfg.Scale)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)

	a.audioCtx = audio.NewContext(48000)
	stream := &apuStream{q: a.audioQueue, lowLatency: cfg.AudioLowLatency, muted: &a.muted}
	player, err := a.audioCtx.NewPlayer(stream)
	if err == nil {
		a.audioPlayer = player
		a.applyPlayerBufferSize()
		a.audioPlayer.Play()
	}
	return a
}

// onFrame is installed as the CORE's framebuffer sink; it unpacks the
// 0x00RRGGBB pixel buffer into the RGBA bytes ebiten's image wants.
func (a *App) onFrame(f *ppu.Frame) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i, px := range f.Pixels {
		o := i * 4
		a.pixels[o+0] = byte(px >> 16)
		a.pixels[o+1] = byte(px >> 8)
		a.pixels[o+2] = byte(px)
		a.pixels[o+3] = 0xFF
	}
}

// Run blocks in ebiten's game loop until the window is closed.
func (a *App) Run() error {
	return ebiten.RunGame(a)
}

func (a *App) Update() error {
	if inpututil.IsKeyJustPressed(ebiten.KeyM) {
		a.muted = !a.muted
	}
	for i, key := range keyBindings {
		pressed := ebiten.IsKeyPressed(key)
		if pressed != a.keys[i] {
			a.keys[i] = pressed
			a.core.NotifyButtonState(0, keypad.Button(i), pressed)
		}
	}
	return nil
}

func (a *App) Draw(screen *ebiten.Image) {
	a.mu.Lock()
	a.tex.WritePixels(a.pixels)
	a.mu.Unlock()

	op := &ebiten.DrawImageOptions{}
	op.GeoM.Scale(float64(a.cfg.Scale), float64(a.cfg.Scale))
	screen.DrawImage(a.tex, op)

	if ebiten.IsKeyPressed(ebiten.KeyF1) {
		msg := fmt.Sprintf("%s  %.0f FPS", a.cfg.Title, ebiten.ActualFPS())
		ebiten.SetWindowTitle(msg)
	}
}

func (a *App) Layout(outsideWidth, outsideHeight int) (int, int) {
	return screenW * a.cfg.Scale, screenH * a.cfg.Scale
}
