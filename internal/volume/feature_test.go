package volume

import (
	"testing"
)

const sampleFeature = `{
  "id": "mdp.39015012345678",
  "metadata": {
    "language": "eng",
    "volumeIdentifier": "mdp.39015012345678"
  },
  "features": {
    "pages": [
      {
        "body": {
          "tokenPosCount": {
            "the": {"DT": 4, "NNP": 1},
            "whale": {"NN": 2}
          }
        }
      },
      {
        "body": {
          "tokenPosCount": {
            "the": {"DT": 3}
          }
        }
      },
      {
        "body": {"tokenPosCount": {}}
      }
    ]
  }
}`

func TestParse(t *testing.T) {
	vol, err := Parse([]byte(sampleFeature))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if vol.ID != "mdp.39015012345678" {
		t.Errorf("ID = %q", vol.ID)
	}
	if got := vol.Language.Primary(); got != "eng" {
		t.Errorf("Primary() = %q, want eng", got)
	}
	if vol.Language.Multiple() {
		t.Error("Multiple() = true for scalar language")
	}
	// Empty third page contributes no section.
	if len(vol.Sections) != 2 {
		t.Fatalf("got %d sections, want 2", len(vol.Sections))
	}
	// POS counts collapse per page.
	if vol.Sections[0]["the"] != 5 {
		t.Errorf(`page 1 "the" = %d, want 5`, vol.Sections[0]["the"])
	}
	if vol.Sections[0]["whale"] != 2 {
		t.Errorf(`page 1 "whale" = %d, want 2`, vol.Sections[0]["whale"])
	}
	if vol.Sections[1]["the"] != 3 {
		t.Errorf(`page 2 "the" = %d, want 3`, vol.Sections[1]["the"])
	}
}

func TestParseLanguageList(t *testing.T) {
	data := `{
	  "id": "uc1.b4134231",
	  "metadata": {"language": ["ger", "lat"]},
	  "features": {"pages": []}
	}`
	vol, err := Parse([]byte(data))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := vol.Language.Primary(); got != "ger" {
		t.Errorf("Primary() = %q, want ger (first of list)", got)
	}
	if !vol.Language.Multiple() {
		t.Error("Multiple() = false for a two-language volume")
	}
	if len(vol.Sections) != 0 {
		t.Errorf("got %d sections, want 0", len(vol.Sections))
	}
}

func TestParseMissingLanguage(t *testing.T) {
	data := `{"id": "mdp.1", "features": {"pages": []}}`
	vol, err := Parse([]byte(data))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := vol.Language.Primary(); got != "" {
		t.Errorf("Primary() = %q, want empty", got)
	}
}

func TestParseLegacyIDField(t *testing.T) {
	data := `{
	  "metadata": {"volumeIdentifier": "mdp.39015000000001", "language": "eng"},
	  "features": {"pages": []}
	}`
	vol, err := Parse([]byte(data))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if vol.ID != "mdp.39015000000001" {
		t.Errorf("ID = %q", vol.ID)
	}
}

func TestParseNoID(t *testing.T) {
	if _, err := Parse([]byte(`{"features": {"pages": []}}`)); err == nil {
		t.Fatal("expected error for feature file without id")
	}
}

func TestParseEscapedTokenKey(t *testing.T) {
	data := `{
	  "id": "mdp.1",
	  "metadata": {"language": "eng"},
	  "features": {"pages": [
	    {"body": {"tokenPosCount": {"says\"": {"VB": 1}}}}
	  ]}
	}`
	vol, err := Parse([]byte(data))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(vol.Sections) != 1 {
		t.Fatalf("got %d sections, want 1", len(vol.Sections))
	}
	if vol.Sections[0][`says"`] != 1 {
		t.Errorf("escaped token key not unescaped: %v", vol.Sections[0])
	}
}

func TestParseMalformedTokenPosCount(t *testing.T) {
	// A present-but-non-object listing is a decode error, not an empty page.
	data := `{
	  "id": "mdp.1",
	  "metadata": {"language": "eng"},
	  "features": {"pages": [
	    {"body": {"tokenPosCount": "corrupt"}}
	  ]}
	}`
	if _, err := Parse([]byte(data)); err == nil {
		t.Fatal("expected error for non-object tokenPosCount")
	}
}

func TestParsePageWithoutBody(t *testing.T) {
	data := `{
	  "id": "mdp.1",
	  "metadata": {"language": "eng"},
	  "features": {"pages": [{"seq": "00000001"}]}
	}`
	vol, err := Parse([]byte(data))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(vol.Sections) != 0 {
		t.Errorf("bodiless page produced %d sections", len(vol.Sections))
	}
}

func TestLanguageTag(t *testing.T) {
	if got := Lang("").Primary(); got != "" {
		t.Errorf("empty Lang Primary = %q", got)
	}
	tag := Langs("fre", "", "lat")
	if got := tag.Codes(); len(got) != 2 || got[0] != "fre" || got[1] != "lat" {
		t.Errorf("Codes() = %v", got)
	}
}
