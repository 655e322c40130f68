package memory

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var stripAccents = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// dutchStopwords are dropped by the analyzer. The list follows the common
// Dutch stopword set of full-text engines.
var dutchStopwords = map[string]struct{}{
	"de": {}, "en": {}, "van": {}, "ik": {}, "te": {}, "dat": {}, "die": {}, "in": {},
	"een": {}, "hij": {}, "het": {}, "niet": {}, "zijn": {}, "is": {}, "was": {},
	"op": {}, "aan": {}, "met": {}, "als": {}, "voor": {}, "had": {}, "er": {},
	"maar": {}, "om": {}, "hem": {}, "dan": {}, "zou": {}, "of": {}, "wat": {},
	"mijn": {}, "men": {}, "dit": {}, "zo": {}, "door": {}, "over": {}, "ze": {},
	"zich": {}, "bij": {}, "ook": {}, "tot": {}, "je": {}, "mij": {}, "uit": {},
	"der": {}, "daar": {}, "haar": {}, "naar": {}, "heb": {}, "hoe": {}, "heeft": {},
	"hebben": {}, "deze": {}, "u": {}, "want": {}, "nog": {}, "zal": {}, "me": {},
	"zij": {}, "nu": {}, "ge": {}, "geen": {}, "omdat": {}, "iets": {}, "worden": {},
	"toch": {}, "al": {}, "waren": {}, "veel": {}, "meer": {}, "doen": {}, "toen": {},
	"moet": {}, "ben": {}, "zonder": {}, "kan": {}, "hun": {}, "dus": {}, "alles": {},
	"onder": {}, "ja": {}, "eens": {}, "hier": {}, "wie": {}, "werd": {}, "altijd": {},
	"doch": {}, "wordt": {}, "wezen": {}, "kunnen": {}, "ons": {}, "zelf": {},
	"tegen": {}, "na": {}, "reeds": {}, "wil": {}, "kon": {}, "niets": {}, "uw": {},
	"iemand": {}, "geweest": {}, "andere": {},
}

// foldText lowercases s and strips diacritics ("Één" -> "een").
func foldText(s string) string {
	folded, _, err := transform.String(stripAccents, strings.ToLower(s))
	if err != nil {
		return strings.ToLower(s)
	}
	return folded
}

// analyzeDutch tokenizes text the way the index analyzes Dutch free text:
// folded, split on anything but letters and digits, stopwords removed and
// each token reduced to a light stem.
func analyzeDutch(text string) []string {
	fields := strings.FieldsFunc(foldText(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if _, stop := dutchStopwords[f]; stop {
			continue
		}
		tokens = append(tokens, stemDutch(f))
	}
	return tokens
}

// stemDutch strips the most common inflectional suffixes. It is deliberately
// light: street names are mostly compounds where aggressive stemming hurts.
func stemDutch(token string) string {
	if isNumeric(token) {
		return token
	}
	r := []rune(token)
	switch {
	case len(r) > 6 && strings.HasSuffix(token, "heden"):
		return string(r[:len(r)-5]) + "heid"
	case len(r) > 4 && strings.HasSuffix(token, "en"):
		return undouble(r[:len(r)-2])
	case len(r) > 4 && strings.HasSuffix(token, "e"):
		return undouble(r[:len(r)-1])
	case len(r) > 4 && strings.HasSuffix(token, "s") && !strings.HasSuffix(token, "ss"):
		return string(r[:len(r)-1])
	}
	return token
}

// undouble reduces a trailing double consonant to a single one
// ("bakken" -> "bakk" -> "bak").
func undouble(r []rune) string {
	n := len(r)
	if n >= 2 && r[n-1] == r[n-2] && !strings.ContainsRune("aeiou", r[n-1]) {
		return string(r[:n-1])
	}
	return string(r)
}

func isNumeric(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return s != ""
}
