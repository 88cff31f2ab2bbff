// Package volume defines the decoded-volume model and the feature-file
// decoder collaborator consumed by the extraction pipeline.
package volume

// TokenCounts maps a token to its occurrence count within one section
// (typically one page) of a volume.
type TokenCounts map[string]int64

// LanguageTag holds the language metadata of a volume. Source metadata may
// report a single code or a list; both are carried explicitly rather than
// as a loosely typed field.
type LanguageTag struct {
	codes []string
}

// Lang builds a tag for a single language code.
func Lang(code string) LanguageTag {
	if code == "" {
		return LanguageTag{}
	}
	return LanguageTag{codes: []string{code}}
}

// Langs builds a tag for a multi-language volume.
func Langs(codes ...string) LanguageTag {
	out := make([]string, 0, len(codes))
	for _, c := range codes {
		if c != "" {
			out = append(out, c)
		}
	}
	return LanguageTag{codes: out}
}

// Primary resolves the tag to a single label. Policy: a multi-language
// volume is attributed to the first reported code. Returns "" for an
// untagged volume.
func (t LanguageTag) Primary() string {
	if len(t.codes) == 0 {
		return ""
	}
	return t.codes[0]
}

// Multiple reports whether the source metadata listed more than one code.
func (t LanguageTag) Multiple() bool {
	return len(t.codes) > 1
}

// Codes returns all reported codes in source order.
func (t LanguageTag) Codes() []string {
	out := make([]string, len(t.codes))
	copy(out, t.codes)
	return out
}

// Volume is one decoded source document: identifier, language metadata and
// the POS-agnostic token counts of each section.
type Volume struct {
	ID       string
	Language LanguageTag
	Sections []TokenCounts
}

// Decoder turns a feature-file path into a decoded volume. Decode errors
// are per-item failures for the batch processor.
type Decoder interface {
	Decode(path string) (*Volume, error)
}
