package normalizer

import (
	"encoding/json"
	"reflect"
	"testing"

	"eventscout/internal/models"
)

// decode turns a JSON fixture into a RawRecord exactly as the API adapter does.
func decode(t *testing.T, body string) models.RawRecord {
	t.Helper()

	var raw models.RawRecord
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		t.Fatalf("bad fixture: %v", err)
	}

	return raw
}

const fullEvent = `{
  "name": "Jazz Night",
  "url": "https://tickets.example.com/jazz",
  "dates": {"start": {"localDate": "2024-05-01"}},
  "classifications": [{"segment": {"name": "Music"}}],
  "promoter": {"name": "Live Nation"},
  "images": [{"url": "https://img.example.com/1.jpg"}, {"url": "https://img.example.com/2.jpg"}],
  "_embedded": {"venues": [{
    "name": "Blue Note",
    "postalCode": "10012",
    "address": {"line1": "131 W 3rd St"}
  }]}
}`

func allFields(e models.NormalizedEvent) map[string]string {
	return map[string]string{
		"name": e.Name, "date": e.Date, "venue": e.VenueName, "address": e.Address,
		"postal": e.PostalCode, "genre": e.Genre, "organizer": e.Organizer,
		"ticket": e.TicketURL, "image": e.ImageURL,
	}
}

func TestNormalize_FullRecord(t *testing.T) {
	n := NewNormalizer(DefaultOptions())

	got := n.Normalize(decode(t, fullEvent), models.SourceAPI)
	want := models.NormalizedEvent{
		Name:       "Jazz Night",
		Date:       "2024-05-01",
		VenueName:  "Blue Note",
		Address:    "131 W 3rd St",
		PostalCode: "10012",
		Genre:      "Music",
		Organizer:  "Live Nation",
		TicketURL:  "https://tickets.example.com/jazz",
		ImageURL:   "https://img.example.com/1.jpg",
	}

	if got != want {
		t.Errorf("Normalize() =\n%+v\nwant\n%+v", got, want)
	}
}

func TestNormalize_EmptyRecordYieldsSentinels(t *testing.T) {
	n := NewNormalizer(DefaultOptions())

	for _, raw := range []models.RawRecord{nil, {}, {"name": nil, "dates": "garbage", "_embedded": []any{}}} {
		got := n.Normalize(raw, models.SourceAPI)
		want := models.NormalizedEvent{
			Name:       models.NoName,
			Date:       models.NoDate,
			VenueName:  models.NoVenue,
			Address:    models.NoAddress,
			PostalCode: models.NoPostalCode,
			Genre:      models.NoGenre,
			Organizer:  models.NoOrganizer,
			TicketURL:  models.NoTicketURL,
			ImageURL:   models.NoImageURL,
		}

		if got != want {
			t.Errorf("Normalize(%v) = %+v", raw, got)
		}
	}
}

func TestNormalize_MissingVenuePath(t *testing.T) {
	raw := decode(t, fullEvent)
	delete(raw, "_embedded")

	got := NewNormalizer(DefaultOptions()).Normalize(raw, models.SourceAPI)

	if got.Address != "No Address Available" {
		t.Errorf("Address = %q, want sentinel", got.Address)
	}

	if got.VenueName != models.NoVenue || got.PostalCode != models.NoPostalCode {
		t.Errorf("venue fields = %q/%q, want sentinels", got.VenueName, got.PostalCode)
	}

	if got.Name != "Jazz Night" || got.Date != "2024-05-01" || got.Genre != "Music" ||
		got.Organizer != "Live Nation" || got.TicketURL != "https://tickets.example.com/jazz" {
		t.Errorf("other fields should resolve normally: %+v", got)
	}
}

func TestNormalize_PartialVenue(t *testing.T) {
	raw := decode(t, `{"_embedded": {"venues": [{"name": "Moody Center", "address": {}}]}}`)

	got := NewNormalizer(DefaultOptions()).Normalize(raw, models.SourceAPI)

	if got.VenueName != "Moody Center" {
		t.Errorf("VenueName = %q", got.VenueName)
	}

	if got.Address != models.NoAddress {
		t.Errorf("Address = %q, want sentinel", got.Address)
	}
}

func TestNormalize_GenreIsSourceReported(t *testing.T) {
	raw := decode(t, `{"name": "Derby", "classifications": [{"segment": {"name": "Sports"}}]}`)

	got := NewNormalizer(DefaultOptions()).Normalize(raw, models.SourceAPI)
	if got.Genre != "Sports" {
		t.Errorf("Genre = %q, want source classification Sports", got.Genre)
	}
}

func TestNormalize_Options(t *testing.T) {
	n := NewNormalizer(Options{IncludeImageURL: false, IncludeOrganizer: false})

	got := n.Normalize(decode(t, fullEvent), models.SourceAPI)
	if got.ImageURL != models.NoImageURL {
		t.Errorf("ImageURL = %q, want sentinel when disabled", got.ImageURL)
	}

	if got.Organizer != models.NoOrganizer {
		t.Errorf("Organizer = %q, want sentinel when disabled", got.Organizer)
	}
}

func TestNormalize_BrowserCard(t *testing.T) {
	raw := models.RawRecord{
		models.CardName:     "  Intro to\n Go ",
		models.CardDate:     "Sat, May 4, 10:00 AM",
		models.CardLocation: "Austin Public Library",
		models.CardLink:     "https://www.eventbrite.com/e/intro-to-go",
	}

	got := NewNormalizer(DefaultOptions()).Normalize(raw, models.SourceBrowser)

	if got.Name != "Intro to Go" {
		t.Errorf("Name = %q, want collapsed whitespace", got.Name)
	}

	if got.VenueName != "Austin Public Library" || got.Address != "Austin Public Library" {
		t.Errorf("location not mapped: %+v", got)
	}

	if got.TicketURL != "https://www.eventbrite.com/e/intro-to-go" {
		t.Errorf("TicketURL = %q", got.TicketURL)
	}

	if got.Genre != models.NoGenre || got.PostalCode != models.NoPostalCode {
		t.Errorf("unsupported card fields should be sentinels: %+v", got)
	}
}

func TestNormalize_NeverEmpty(t *testing.T) {
	n := NewNormalizer(DefaultOptions())
	inputs := []models.RawRecord{
		{},
		{"name": "   "},
		{"name": 42.0, "url": true},
		{"images": []any{nil}},
		{"classifications": []any{map[string]any{"segment": nil}}},
	}

	for _, kind := range []models.SourceKind{models.SourceAPI, models.SourceBrowser} {
		for _, raw := range inputs {
			for k, v := range allFields(n.Normalize(raw, kind)) {
				if v == "" {
					t.Errorf("%s field %s empty for %v", kind, k, raw)
				}
			}
		}
	}
}

func TestNormalizeAll_PreservesOrder(t *testing.T) {
	raws := []models.RawRecord{{"name": "A"}, {"name": "B"}, {"name": "C"}}

	got := NewNormalizer(DefaultOptions()).NormalizeAll(raws, models.SourceAPI)

	var names []string
	for _, e := range got {
		names = append(names, e.Name)
	}

	if !reflect.DeepEqual(names, []string{"A", "B", "C"}) {
		t.Errorf("names = %v", names)
	}
}

func TestDig(t *testing.T) {
	root := map[string]any{
		"a": map[string]any{"b": []any{map[string]any{"c": "deep"}}},
		"n": 10012.0,
		"e": "",
	}

	tests := []struct {
		name  string
		steps []Step
		want  string
	}{
		{"deep", Path("a.b.0.c"), "deep"},
		{"number", Path("n"), "10012"},
		{"blank", Path("e"), "X"},
		{"missing key", Path("a.z"), "X"},
		{"index out of range", Path("a.b.3.c"), "X"},
		{"negative index", []Step{Key("a"), Key("b"), Index(-1)}, "X"},
		{"key on list", Path("a.b.c"), "X"},
		{"non scalar leaf", Path("a.b"), "X"},
		{"no steps on map", nil, "X"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Dig(root, "X", tt.steps...); got != tt.want {
				t.Errorf("Dig = %q, want %q", got, tt.want)
			}
		})
	}
}
