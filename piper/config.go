// Package piper is the text front end of piper voices: it turns text into
// phoneme strings through a phonemizer and phoneme strings into model ids.
package piper

import (
	"fmt"
	"os"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Phoneme types.
const (
	PhonemeTypeEspeak = "espeak"
	PhonemeTypeText   = "text"
)

// Default synthesis settings of piper voices.
const (
	DefaultVoice       = "en-us"
	DefaultSampleRate  = 22050
	DefaultNoiseScale  = 0.667
	DefaultLengthScale = 1.0
	DefaultNoiseW      = 0.8
)

// Config is a piper voice configuration, as found next to the model in
// <voice>.onnx.json.
type Config struct {
	Audio struct {
		SampleRate int    `json:"sample_rate"`
		Channels   int    `json:"channels"`
		Quality    string `json:"quality,omitempty"`
	} `json:"audio"`

	Espeak struct {
		Voice string `json:"voice"`
	} `json:"espeak"`

	Language struct {
		Code string `json:"code,omitempty"`
	} `json:"language"`

	Inference Inference `json:"inference"`

	PhonemeType  string             `json:"phoneme_type"`
	PhonemeIDMap map[string][]int64 `json:"phoneme_id_map,omitempty"`

	NumSpeakers  int            `json:"num_speakers"`
	SpeakerIDMap map[string]int `json:"speaker_id_map,omitempty"`
}

// Inference holds the VITS sampling scales.
type Inference struct {
	NoiseScale     float32            `json:"noise_scale"`
	LengthScale    float32            `json:"length_scale"`
	NoiseW         float32            `json:"noise_w"`
	PhonemeSilence map[string]float32 `json:"phoneme_silence,omitempty"`
}

// DefaultConfig returns the settings used for keys a voice file leaves out.
func DefaultConfig() *Config {
	c := &Config{PhonemeType: PhonemeTypeEspeak, NumSpeakers: 1}
	c.Audio.SampleRate = DefaultSampleRate
	c.Audio.Channels = 1
	c.Espeak.Voice = DefaultVoice
	c.Inference = Inference{
		NoiseScale:  DefaultNoiseScale,
		LengthScale: DefaultLengthScale,
		NoiseW:      DefaultNoiseW,
	}
	return c
}

// LoadConfig reads a piper voice configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("piper: read config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes a piper voice configuration over DefaultConfig.
func ParseConfig(data []byte) (*Config, error) {
	c := DefaultConfig()
	if err := json.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("piper: parse config: %w", err)
	}
	if c.Espeak.Voice == "" {
		return nil, fmt.Errorf("piper: invalid voice in config")
	}
	if c.NumSpeakers < 1 {
		c.NumSpeakers = 1
	}
	return c, nil
}

// SpeakerID resolves a speaker by name, falling back to 0 for unknown names.
func (c *Config) SpeakerID(name string) int {
	if id, ok := c.SpeakerIDMap[name]; ok {
		return id
	}
	return 0
}

// ClampSpeaker limits a speaker id to the voice's speaker range.
func (c *Config) ClampSpeaker(id int) int {
	switch {
	case id < 0:
		return 0
	case id >= c.NumSpeakers:
		return c.NumSpeakers - 1
	}
	return id
}

// IDMap converts the voice's phoneme_id_map to the rune-keyed form used by
// PhonemeIDs. It returns nil if the voice has no map of its own. Each key
// is taken by its last rune.
func (c *Config) IDMap() map[rune][]int64 {
	if len(c.PhonemeIDMap) == 0 {
		return nil
	}
	m := make(map[rune][]int64, len(c.PhonemeIDMap))
	for k, ids := range c.PhonemeIDMap {
		r := []rune(k)
		if len(r) == 0 {
			continue
		}
		m[r[len(r)-1]] = ids
	}
	return m
}
