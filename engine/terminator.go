package engine

// Clause terminator bits as reported by espeak-ng.
const (
	ClauseIntonationFullStop    = 0x00000000
	ClauseIntonationComma       = 0x00001000
	ClauseIntonationQuestion    = 0x00002000
	ClauseIntonationExclamation = 0x00003000
	ClauseIntonationNone        = 0x00004000

	ClauseTypeNone        = 0x00000000
	ClauseTypeEOF         = 0x00010000
	ClauseTypeVoiceChange = 0x00020000
	ClauseTypeClause      = 0x00040000
	ClauseTypeSentence    = 0x00080000

	// ClausePunctuationMask drops the flag bits above the clause type.
	ClausePunctuationMask = 0x000FFFFF
)

// Punctuation-bearing terminators, matched against Terminator&ClausePunctuationMask.
// The low bits hold the pause length espeak-ng assigns to each mark.
const (
	ClausePeriod      = 40 | ClauseIntonationFullStop | ClauseTypeSentence
	ClauseComma       = 20 | ClauseIntonationComma | ClauseTypeClause
	ClauseQuestion    = 40 | ClauseIntonationQuestion | ClauseTypeSentence
	ClauseExclamation = 45 | ClauseIntonationExclamation | ClauseTypeSentence
	ClauseColon       = 30 | ClauseIntonationFullStop | ClauseTypeClause
	ClauseSemicolon   = 30 | ClauseIntonationComma | ClauseTypeClause
)

// Punctuation returns the punctuation mark that ended the clause, or 0 if the
// terminator carries none.
func (c Clause) Punctuation() rune {
	switch c.Terminator & ClausePunctuationMask {
	case ClauseExclamation:
		return '!'
	case ClauseQuestion:
		return '?'
	case ClauseComma:
		return ','
	case ClauseColon:
		return ':'
	case ClauseSemicolon:
		return ';'
	case ClausePeriod:
		return '.'
	}
	return 0
}

// EndsSentence reports whether the clause closed a sentence.
func (c Clause) EndsSentence() bool {
	return c.Terminator&ClauseTypeSentence == ClauseTypeSentence
}

// EndOfInput reports whether the input was exhausted by this clause.
func (c Clause) EndOfInput() bool {
	return c.Remaining == "" || c.Terminator&ClauseTypeEOF == ClauseTypeEOF
}
