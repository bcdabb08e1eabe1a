package intent

import "regexp"

// Tense is the temporal reading of a question.
type Tense int

const (
	TenseUnspecified Tense = iota
	TensePast
	TensePresent
	TenseFuture
)

func (t Tense) String() string {
	switch t {
	case TensePast:
		return "past"
	case TensePresent:
		return "present"
	case TenseFuture:
		return "future"
	}
	return "unspecified"
}

func (t Tense) verb() string {
	switch t {
	case TensePast:
		return "worked"
	case TensePresent:
		return "presently works"
	case TenseFuture:
		return "will work"
	}
	return "works"
}

func (t Tense) adjective() string {
	switch t {
	case TensePast:
		return "past"
	case TensePresent:
		return "current"
	case TenseFuture:
		return "planned"
	}
	return ""
}

var (
	presentCue = regexp.MustCompile(`(?i)\b(currently|now|present)\b`)
	pastCue    = regexp.MustCompile(`(?i)\bpreviously\b`)
	futureCue  = regexp.MustCompile(`(?i)\b(will|plans\s+to)\b`)
)

// DetectTense reads the tense from lexical cues in the user's text. When
// cues of several tenses appear, present wins over past and past over
// future.
func DetectTense(text string) Tense {
	switch {
	case presentCue.MatchString(text):
		return TensePresent
	case pastCue.MatchString(text):
		return TensePast
	case futureCue.MatchString(text):
		return TenseFuture
	}
	return TenseUnspecified
}
