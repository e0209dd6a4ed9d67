package voice

import (
	"regexp"
	"strconv"
	"strings"
)

// wordNums maps spelled-out number words to ordinals 1..35. The homophones
// "to", "too" and "for" are deliberately absent: they appear constantly in
// commands ("move task two to done") and must never be read as numbers.
var wordNums = map[string]int{
	"one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
	"six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10,
	"eleven": 11, "twelve": 12, "thirteen": 13, "fourteen": 14, "fifteen": 15,
	"sixteen": 16, "seventeen": 17, "eighteen": 18, "nineteen": 19, "twenty": 20,
	"twenty one": 21, "twenty two": 22, "twenty three": 23, "twenty four": 24, "twenty five": 25,
	"twenty six": 26, "twenty seven": 27, "twenty eight": 28, "twenty nine": 29, "thirty": 30,
	"thirty one": 31, "thirty two": 32, "thirty three": 33, "thirty four": 34, "thirty five": 35,
}

// Longer alternatives come first so compounds win over their leading word.
const numberWordPattern = `(?:twenty[ -](?:one|two|three|four|five|six|seven|eight|nine)|` +
	`thirty[ -](?:one|two|three|four|five)|` +
	`seventeen|thirteen|fourteen|eighteen|nineteen|sixteen|fifteen|eleven|twelve|` +
	`twenty|thirty|three|seven|eight|four|five|nine|one|two|six|ten)`

var (
	anchoredDigitsRe = regexp.MustCompile(`\b(?:task|number)(?:\s+number)?\s+(\d+)\b`)
	anchoredWordRe   = regexp.MustCompile(`\b(?:task|number)(?:\s+number)?\s+(` + numberWordPattern + `)\b`)
	compoundRe       = regexp.MustCompile(`\b(twenty[ -](?:one|two|three|four|five|six|seven|eight|nine)|thirty[ -](?:one|two|three|four|five))\b`)
)

// ExtractOrdinal finds the task ordinal referenced by a normalized command.
// Heuristics run in strict priority order, first match wins:
//
//  1. "task N" / "task number N" / "number N" with digit N
//  2. the same anchors with a spelled-out number word (1..35, compounds included)
//  3. a standalone compound number word anywhere in the text
//
// Bare digits without a "task"/"number" anchor are never treated as
// ordinals; they are too easily part of a title or column reference.
func ExtractOrdinal(text string) (int, bool) {
	if m := anchoredDigitsRe.FindStringSubmatch(text); m != nil {
		n, err := strconv.Atoi(m[1])
		if err == nil && n > 0 {
			return n, true
		}
	}
	if m := anchoredWordRe.FindStringSubmatch(text); m != nil {
		if n, ok := lookupNumberWord(m[1]); ok {
			return n, true
		}
	}
	if m := compoundRe.FindStringSubmatch(text); m != nil {
		if n, ok := lookupNumberWord(m[1]); ok {
			return n, true
		}
	}
	return 0, false
}

func lookupNumberWord(word string) (int, bool) {
	word = strings.ReplaceAll(word, "-", " ")
	word = strings.Join(strings.Fields(word), " ")
	n, ok := wordNums[word]
	return n, ok
}
