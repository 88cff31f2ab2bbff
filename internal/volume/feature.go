package volume

import (
	"bytes"
	"compress/bzip2"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/buger/jsonparser"
)

// FeatureDecoder decodes bz2-compressed document feature files. Only the
// id, language and per-page token-count subtrees are visited; the rest of
// the document (headers, footers, line metrics) is skipped.
type FeatureDecoder struct {
	// Root is the corpus root prepended to relative feature-file paths.
	Root string
}

// NewFeatureDecoder creates a decoder rooted at the corpus directory.
func NewFeatureDecoder(root string) *FeatureDecoder {
	return &FeatureDecoder{Root: root}
}

// Decode reads and parses one feature file. The returned volume carries
// the POS-collapsed token counts of every page body.
func (d *FeatureDecoder) Decode(path string) (*Volume, error) {
	full := filepath.Join(d.Root, path)
	f, err := os.Open(filepath.Clean(full))
	if err != nil {
		return nil, fmt.Errorf("open feature file: %w", err)
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(bzip2.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("decompress %s: %w", filepath.Base(path), err)
	}
	return Parse(data)
}

// Parse decodes a feature document from raw JSON bytes.
func Parse(data []byte) (*Volume, error) {
	vol := &Volume{}

	id, err := jsonparser.GetString(data, "id")
	if err != nil {
		// Older feature files carry the id only in the metadata block.
		id, err = jsonparser.GetString(data, "metadata", "volumeIdentifier")
		if err != nil {
			return nil, fmt.Errorf("feature file has no volume id: %w", err)
		}
	}
	vol.ID = id
	vol.Language = parseLanguage(data)

	var pageErr error
	_, err = jsonparser.ArrayEach(data, func(page []byte, _ jsonparser.ValueType, _ int, _ error) {
		if pageErr != nil {
			return
		}
		sec, err := parsePageTokens(page)
		if err != nil {
			pageErr = err
			return
		}
		if len(sec) > 0 {
			vol.Sections = append(vol.Sections, sec)
		}
	}, "features", "pages")
	if err != nil && err != jsonparser.KeyPathNotFoundError {
		return nil, fmt.Errorf("parse pages: %w", err)
	}
	if pageErr != nil {
		return nil, fmt.Errorf("parse pages: %w", pageErr)
	}
	return vol, nil
}

// parseLanguage handles the scalar-or-list language field.
func parseLanguage(data []byte) LanguageTag {
	val, typ, _, err := jsonparser.Get(data, "metadata", "language")
	if err != nil {
		return LanguageTag{}
	}
	switch typ {
	case jsonparser.String:
		code, err := jsonparser.ParseString(val)
		if err != nil {
			return LanguageTag{}
		}
		return Lang(code)
	case jsonparser.Array:
		var codes []string
		_, _ = jsonparser.ArrayEach(val, func(item []byte, it jsonparser.ValueType, _ int, _ error) {
			if it != jsonparser.String {
				return
			}
			if code, err := jsonparser.ParseString(item); err == nil {
				codes = append(codes, code)
			}
		})
		return Langs(codes...)
	default:
		return LanguageTag{}
	}
}

// parsePageTokens collapses one page's tokenPosCount object to a flat
// token -> count map, summing across parts of speech.
func parsePageTokens(page []byte) (TokenCounts, error) {
	tokObj, typ, _, err := jsonparser.Get(page, "body", "tokenPosCount")
	if err == jsonparser.KeyPathNotFoundError {
		// Pages without a token listing (blanks, plates) are normal.
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("tokenPosCount: %w", err)
	}
	if typ != jsonparser.Object {
		return nil, fmt.Errorf("tokenPosCount is not an object")
	}

	sec := TokenCounts{}
	err = jsonparser.ObjectEach(tokObj, func(key, value []byte, vt jsonparser.ValueType, _ int) error {
		token, err := unescapeKey(key)
		if err != nil {
			return fmt.Errorf("token key: %w", err)
		}
		var total int64
		if vt == jsonparser.Object {
			err = jsonparser.ObjectEach(value, func(_, posCount []byte, _ jsonparser.ValueType, _ int) error {
				n, err := jsonparser.ParseInt(posCount)
				if err != nil {
					return fmt.Errorf("count for %q: %w", token, err)
				}
				total += n
				return nil
			})
			if err != nil {
				return err
			}
		} else {
			n, err := jsonparser.ParseInt(value)
			if err != nil {
				return fmt.Errorf("count for %q: %w", token, err)
			}
			total = n
		}
		if total > 0 {
			sec[token] += total
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sec, nil
}

// unescapeKey resolves JSON escapes in object keys. jsonparser hands keys
// over raw, so tokens containing quotes or unicode escapes need a pass
// through Unescape.
func unescapeKey(key []byte) (string, error) {
	if !bytes.ContainsRune(key, '\\') {
		return string(key), nil
	}
	var stack [64]byte
	out, err := jsonparser.Unescape(key, stack[:])
	if err != nil {
		return "", err
	}
	return string(out), nil
}
