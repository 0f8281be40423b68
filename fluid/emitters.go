package fluid

import (
	"context"

	"github.com/artinkavousi/Webfluidsystem/audio"
	"github.com/artinkavousi/Webfluidsystem/emitter"
)

// AddEmitter registers e and returns its index.
func (s *Simulation) AddEmitter(e emitter.Emitter) int {
	s.inputMu.Lock()
	defer s.inputMu.Unlock()
	return s.emitters.Add(e)
}

// RemoveEmitter deletes the emitter at index i. Later indices shift down.
func (s *Simulation) RemoveEmitter(i int) bool {
	s.inputMu.Lock()
	defer s.inputMu.Unlock()
	return s.emitters.Remove(i)
}

// UpdateEmitter merges p into the emitter at index i.
func (s *Simulation) UpdateEmitter(i int, p emitter.Patch) bool {
	s.inputMu.Lock()
	defer s.inputMu.Unlock()
	return s.emitters.Update(i, p)
}

// GetEmitter returns a copy of the emitter at index i, or the mouse
// emitter for emitter.MouseID.
func (s *Simulation) GetEmitter(i int) (emitter.Emitter, bool) {
	s.inputMu.Lock()
	defer s.inputMu.Unlock()
	return s.emitters.Get(i)
}

// Emitters returns copies of every registered emitter.
func (s *Simulation) Emitters() []emitter.Emitter {
	s.inputMu.Lock()
	defer s.inputMu.Unlock()
	return s.emitters.List()
}

// EnableAudio opens the configured audio file, falling back to the
// synthetic signal when it cannot be opened. Only a cancelled ctx fails.
// It blocks through the retries, so hosts usually run it on a goroutine.
func (s *Simulation) EnableAudio(ctx context.Context) error {
	if s.disposed {
		return ErrDisposed
	}
	src := audio.NewWAVSource(s.cfg.Audio.File, audio.DefaultSampleRate)
	return s.audio.Enable(ctx, src)
}

// DisableAudio closes the audio source. Emitters then see silence.
func (s *Simulation) DisableAudio() { s.audio.Disable() }

// AudioSignal returns the latest analyzed audio frame.
func (s *Simulation) AudioSignal() audio.Signal { return s.audio.Signal() }

// AudioSynthetic reports whether the synthetic fallback is playing.
func (s *Simulation) AudioSynthetic() bool { return s.audio.Synthetic() }

// AudioEnabled reports whether a source, real or synthetic, is open.
func (s *Simulation) AudioEnabled() bool { return s.audio.Enabled() }
