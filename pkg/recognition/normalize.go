package recognition

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// DefaultGenericSuffixes - служебные слова, которые vision-модель и
// операторы по-разному дописывают к названиям категорий.
var DefaultGenericSuffixes = []string{"顏色", "組件", "造型", "鏡頭", "按鍵", "組", "型"}

// DefaultOtherNames - названия опции "Другое".
var DefaultOtherNames = []string{"其他", "其它"}

// Normalize - лёгкая нормализация: NFKC (полноширинные символы -> обычные),
// case folding, удаление всех пробельных символов.
func Normalize(s string) string {
	s = norm.NFKC.String(s)
	s = cases.Fold().String(s)

	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

// suffixStripper - строгая нормализация для названий категорий.
type suffixStripper struct {
	suffixes []string // нормализованы, от длинных к коротким
}

func newSuffixStripper(words []string) suffixStripper {
	suffixes := make([]string, 0, len(words))
	for _, w := range words {
		if n := Normalize(w); n != "" {
			suffixes = append(suffixes, n)
		}
	}
	sort.SliceStable(suffixes, func(i, j int) bool {
		return len(suffixes[i]) > len(suffixes[j])
	})
	return suffixStripper{suffixes: suffixes}
}

// Strict нормализует строку и срезает служебные суффиксы. Строка, которая
// целиком совпадает с одним из суффиксов, не режется: "鏡頭" остаётся
// "鏡頭", "造型" остаётся "造型", а не "造".
func (st suffixStripper) Strict(s string) string {
	n := Normalize(s)
	for {
		if st.isSuffix(n) {
			return n
		}
		stripped := false
		for _, suf := range st.suffixes {
			if len(n) > len(suf) && strings.HasSuffix(n, suf) {
				n = strings.TrimSuffix(n, suf)
				stripped = true
				break
			}
		}
		if !stripped {
			return n
		}
	}
}

func (st suffixStripper) isSuffix(n string) bool {
	for _, suf := range st.suffixes {
		if n == suf {
			return true
		}
	}
	return false
}

// containsEither - двусторонняя проверка вхождения. Пустые строки не
// совпадают ни с чем: иначе "" входило бы в любое название.
func containsEither(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}
