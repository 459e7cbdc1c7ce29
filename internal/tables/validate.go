package tables

// Validate checks the invariants the engine relies on.
func (s *Set) Validate() error {
	if s == nil {
		return invalidf("nil table set")
	}
	for index, want := range anchors {
		got := string(s.Phonemes[index].Name[:])
		if got != want {
			return invalidf("phonemes[%d]: want %q, got %q", index, want, got)
		}
	}
	for i, p := range s.Phonemes {
		if p.Flags&FlagStop != 0 && i+2 >= PhonemeCount {
			return invalidf("phonemes[%d] %s: stop needs two following release rows", i, p.Mnemonic())
		}
		if p.Noise != 0 {
			bank := p.Noise & 7
			if bank < 1 || int(bank) > len(s.NoiseBanks) {
				return invalidf("phonemes[%d] %s: noise bank %d outside 1..%d", i, p.Mnemonic(), bank, len(s.NoiseBanks))
			}
		}
	}
	if len(s.PunctuationRules) == 0 {
		return invalidf("rules.punctuation must not be empty")
	}
	for _, r := range s.PunctuationRules {
		if err := s.checkRule(r); err != nil {
			return invalidf("rules.punctuation: %v", err)
		}
	}
	for i, group := range s.LetterRules {
		letter := string(rune('A' + i))
		if len(group) == 0 {
			return invalidf("rules.letters.%s must not be empty", letter)
		}
		for _, r := range group {
			if err := s.checkRule(r); err != nil {
				return invalidf("rules.letters.%s: %v", letter, err)
			}
		}
	}
	return nil
}
