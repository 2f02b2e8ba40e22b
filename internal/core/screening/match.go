package screening

import "encoding/json"

const (
	TopicSanction = "sanction"
	TopicPEP      = "role.pep"
)

// Match is the normalized shape of one provider result.
type Match struct {
	ID           string   `json:"id"`
	Name         *string  `json:"name"`
	SchemaType   *string  `json:"schemaType"`
	Score        *float64 `json:"score"`
	BirthDate    *string  `json:"birthDate"`
	BirthPlace   *string  `json:"birthPlace"`
	Gender       *string  `json:"gender"`
	Nationality  []string `json:"nationality"`
	Countries    []string `json:"countries"`
	Position     []string `json:"position"`
	Notes        []string `json:"notes"`
	Aliases      []string `json:"aliases"`
	Addresses    []string `json:"addresses"`
	Datasets     []string `json:"datasets"`
	IsSanctioned bool     `json:"isSanctioned"`
	IsPep        bool     `json:"isPep"`

	raw json.RawMessage
}

// Raw returns the upstream payload this match was built from.
func (m Match) Raw() json.RawMessage {
	return m.raw
}

// Normalize converts a raw provider match into a Match. It never fails:
// missing scalars become nil and missing lists become empty.
func Normalize(raw RawMatch) Match {
	name := raw.Field("caption")
	if name == nil {
		name = raw.Property("name").First()
	}

	id := ""
	if v := raw.Field("id"); v != nil {
		id = *v
	}

	topics := raw.Property("topics")

	return Match{
		ID:           id,
		Name:         name,
		SchemaType:   raw.Field("schema"),
		Score:        raw.Number("score"),
		BirthDate:    raw.Property("birthDate").First(),
		BirthPlace:   raw.Property("birthPlace").First(),
		Gender:       raw.Property("gender").First(),
		Nationality:  raw.Property("nationality").List(),
		Countries:    raw.Property("country").List(),
		Position:     raw.Property("position").List(),
		Notes:        raw.Property("notes").List(),
		Aliases:      raw.Property("alias").List(),
		Addresses:    raw.Property("address").List(),
		Datasets:     raw.Property("datasets").List(),
		IsSanctioned: topics.Contains(TopicSanction),
		IsPep:        topics.Contains(TopicPEP),
		raw:          raw.Raw(),
	}
}

// NormalizeAll keeps upstream order; no re-sorting is performed.
func NormalizeAll(raws []RawMatch) []Match {
	matches := make([]Match, 0, len(raws))
	for _, raw := range raws {
		matches = append(matches, Normalize(raw))
	}
	return matches
}
