// Package extract turns decoded volumes into normalized token-frequency
// tables ready for columnar storage.
package extract

import (
	"sort"
	"unicode/utf8"

	"github.com/corpuslab/tokenmill/internal/volume"
)

// MaxTokenBytes is the storage cap on the UTF-8 encoding of a token.
// Longer tokens are truncated, never split mid-codepoint. Truncation is
// lossy: distinct tokens sharing a 50-byte prefix collapse into one row.
const MaxTokenBytes = 50

// Row is one (language, volume, token) -> count entry.
type Row struct {
	Language string
	VolumeID string
	Token    string
	Count    int64
}

// Table holds the extracted rows of one volume or one batch, sorted by
// (language, volume id, token) for efficient columnar appends.
type Table []Row

// Extract produces the token table of one decoded volume. An empty token
// listing yields an empty table, which callers treat as "skip, not an
// error". Pure function of its input.
func Extract(vol *volume.Volume) Table {
	totals := make(map[string]int64)
	for _, sec := range vol.Sections {
		for tok, n := range sec {
			if n <= 0 {
				continue
			}
			// Truncated forms may collide; their counts merge.
			totals[TruncateToken(tok)] += n
		}
	}
	if len(totals) == 0 {
		return nil
	}

	lang := vol.Language.Primary()
	table := make(Table, 0, len(totals))
	for tok, n := range totals {
		table = append(table, Row{
			Language: lang,
			VolumeID: vol.ID,
			Token:    tok,
			Count:    n,
		})
	}
	table.Sort()
	return table
}

// Sort orders the table by (language, volume id, token).
func (t Table) Sort() {
	sort.Slice(t, func(i, j int) bool {
		if t[i].Language != t[j].Language {
			return t[i].Language < t[j].Language
		}
		if t[i].VolumeID != t[j].VolumeID {
			return t[i].VolumeID < t[j].VolumeID
		}
		return t[i].Token < t[j].Token
	})
}

// TruncateToken caps a token at MaxTokenBytes of UTF-8 by dropping trailing
// characters one at a time. The result is always a valid-UTF-8 prefix of
// the input; a multi-byte character straddling the cap is dropped whole.
func TruncateToken(tok string) string {
	for len(tok) > MaxTokenBytes {
		_, size := utf8.DecodeLastRuneInString(tok)
		if size == 0 {
			break
		}
		tok = tok[:len(tok)-size]
	}
	return tok
}
