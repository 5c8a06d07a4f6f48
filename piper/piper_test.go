package piper

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/obinnaokechukwu/speechgen"
	"github.com/obinnaokechukwu/speechgen/engine"
	"github.com/obinnaokechukwu/speechgen/engine/enginetest"
)

const voiceJSON = `{
  "audio": {"sample_rate": 16000, "quality": "low"},
  "espeak": {"voice": "de"},
  "language": {"code": "de_DE"},
  "inference": {"noise_scale": 0.5, "length_scale": 1.2, "noise_w": 0.9, "phoneme_silence": {".": 0.2}},
  "phoneme_type": "espeak",
  "phoneme_id_map": {"_": [0], "^": [1], "$": [2], "a": [14], "b": [15, 16]},
  "num_speakers": 2,
  "speaker_id_map": {"anna": 0, "ben": 1}
}`

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "voice.onnx.json")
	if err := os.WriteFile(path, []byte(voiceJSON), 0o644); err != nil {
		t.Fatal(err)
	}

	c, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if c.Espeak.Voice != "de" || c.Audio.SampleRate != 16000 || c.Audio.Channels != 1 {
		t.Errorf("unexpected config: %+v", c)
	}
	if c.Inference.NoiseScale != 0.5 || c.Inference.LengthScale != 1.2 || c.Inference.NoiseW != 0.9 {
		t.Errorf("inference: %+v", c.Inference)
	}
	if c.Inference.PhonemeSilence["."] != 0.2 {
		t.Errorf("phoneme silence: %v", c.Inference.PhonemeSilence)
	}
	if c.SpeakerID("ben") != 1 || c.SpeakerID("nobody") != 0 {
		t.Error("SpeakerID lookup failed")
	}
	if c.ClampSpeaker(5) != 1 || c.ClampSpeaker(-1) != 0 {
		t.Error("ClampSpeaker should keep ids in range")
	}

	m := c.IDMap()
	if len(m['b']) != 2 || m['a'][0] != 14 {
		t.Errorf("IDMap = %v", m)
	}
}

func TestParseConfigDefaults(t *testing.T) {
	c, err := ParseConfig([]byte(`{}`))
	if err != nil {
		t.Fatal(err)
	}
	want := DefaultConfig()
	if c.Espeak.Voice != want.Espeak.Voice || c.Audio.SampleRate != DefaultSampleRate {
		t.Errorf("defaults not applied: %+v", c)
	}
	if c.Inference.NoiseScale != DefaultNoiseScale || c.Inference.NoiseW != DefaultNoiseW {
		t.Errorf("inference defaults: %+v", c.Inference)
	}
	if c.IDMap() != nil {
		t.Error("no phoneme_id_map should give a nil IDMap")
	}
}

func TestParseConfigErrors(t *testing.T) {
	if _, err := ParseConfig([]byte(`{not json`)); err == nil {
		t.Error("expected error for invalid JSON")
	}
	if _, err := ParseConfig([]byte(`{"espeak": {"voice": ""}}`)); err == nil {
		t.Error("expected error for empty voice")
	}
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
}

func newPhonemizer(t *testing.T) *speechgen.Bridge {
	t.Helper()
	b := speechgen.NewBridge(nil, &enginetest.Phonemizer{})
	t.Cleanup(func() { _ = b.Close() })
	if err := b.InitPhonemizer("/data"); err != nil {
		t.Fatal(err)
	}
	return b
}

func TestPhonemize(t *testing.T) {
	b := newPhonemizer(t)

	got, err := Phonemize(b, "en-us", "  Hello, world. How are you?  ")
	if err != nil {
		t.Fatal(err)
	}
	want := "en-us:hello, en-us:world.\nen-us:how are you?\n"
	if got != want {
		t.Errorf("Phonemize = %q, want %q", got, want)
	}

	sentences := Sentences(got)
	if len(sentences) != 2 || sentences[1] != "en-us:how are you?" {
		t.Errorf("Sentences = %q", sentences)
	}
}

func TestPhonemizeEmpty(t *testing.T) {
	b := newPhonemizer(t)

	got, err := Phonemize(b, "en-us", "   ")
	if err != nil || got != "" {
		t.Errorf("Phonemize(blank) = %q, %v", got, err)
	}
}

func TestPhonemizeErrors(t *testing.T) {
	b := newPhonemizer(t)

	_, err := Phonemize(b, "xx", "Hello.")
	if speechgen.KindOf(err) != speechgen.KindEngineOperation {
		t.Errorf("unknown voice: %v", err)
	}

	_, err = Phonemize(stuck{}, "en-us", "Hello.")
	if !errors.Is(err, ErrNoProgress) {
		t.Errorf("expected ErrNoProgress, got %v", err)
	}
}

type stuck struct{}

func (stuck) PhonemizeClause(_, text string) (engine.Clause, error) {
	return engine.Clause{Remaining: text, Terminator: engine.ClauseComma}, nil
}

func TestPhonemeIDs(t *testing.T) {
	ids, missing := PhonemeIDs("ab", DefaultIDConfig())
	// ^ _ a _ b _ $
	want := []int64{1, 0, 14, 0, 15, 0, 2}
	if len(ids) != len(want) {
		t.Fatalf("ids = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("ids = %v, want %v", ids, want)
		}
	}
	if len(missing) != 0 {
		t.Errorf("missing = %v", missing)
	}
}

func TestPhonemeIDsMissingAndOptions(t *testing.T) {
	cfg := IDConfig{IDMap: map[rune][]int64{'a': {7, 8}}, InterspersePad: false}
	ids, missing := PhonemeIDs("a€a€€", cfg)
	if len(ids) != 4 {
		t.Errorf("ids = %v", ids)
	}
	if missing['€'] != 3 {
		t.Errorf("missing = %v", missing)
	}
}

func TestDefaultPhonemeIDMap(t *testing.T) {
	if len(DefaultPhonemeIDMap) != 159 {
		t.Errorf("default map has %d entries", len(DefaultPhonemeIDMap))
	}
	seen := make(map[int64]rune)
	for r, ids := range DefaultPhonemeIDMap {
		if len(ids) != 1 {
			t.Fatalf("%q maps to %v", r, ids)
		}
		if other, dup := seen[ids[0]]; dup {
			t.Errorf("id %d used by %q and %q", ids[0], r, other)
		}
		seen[ids[0]] = r
	}
}
