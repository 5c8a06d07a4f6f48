package piper

// IDConfig controls how phonemes are mapped to model ids.
type IDConfig struct {
	// IDMap maps a phoneme to its ids. Nil uses DefaultPhonemeIDMap.
	IDMap map[rune][]int64

	Pad rune
	BOS rune
	EOS rune

	// InterspersePad inserts the pad id after every phoneme.
	InterspersePad bool
	AddBOS         bool
	AddEOS         bool
}

// DefaultIDConfig returns the settings piper voices are trained with.
func DefaultIDConfig() IDConfig {
	return IDConfig{
		Pad:            '_',
		BOS:            '^',
		EOS:            '$',
		InterspersePad: true,
		AddBOS:         true,
		AddEOS:         true,
	}
}

// PhonemeIDs maps phonemes to ids. Phonemes missing from the id map are
// skipped and counted in missing.
func PhonemeIDs(phonemes string, cfg IDConfig) (ids []int64, missing map[rune]int) {
	idMap := cfg.IDMap
	if idMap == nil {
		idMap = DefaultPhonemeIDMap
	}
	missing = make(map[rune]int)

	pad := idMap[cfg.Pad]
	if cfg.AddBOS {
		ids = append(ids, idMap[cfg.BOS]...)
		if cfg.InterspersePad {
			ids = append(ids, pad...)
		}
	}

	for _, ph := range phonemes {
		phIDs, ok := idMap[ph]
		if !ok {
			missing[ph]++
			continue
		}
		ids = append(ids, phIDs...)
		if cfg.InterspersePad {
			ids = append(ids, pad...)
		}
	}

	if cfg.AddEOS {
		ids = append(ids, idMap[cfg.EOS]...)
	}
	return ids, missing
}
