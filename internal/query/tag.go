package query

// Tag is the query type carried at offset 10 of every request and response.
type Tag uint8

// Known query types.
const (
	TagInfo Tag = iota + 1
	TagPlayers
	TagRules
	TagExtraInfo
	TagPing
)

var tagBytes = [...]byte{
	TagInfo:      'i',
	TagPlayers:   'c',
	TagRules:     'r',
	TagExtraInfo: 'o',
	TagPing:      'p',
}

var tagNames = [...]string{
	TagInfo:      "info",
	TagPlayers:   "players",
	TagRules:     "rules",
	TagExtraInfo: "extra_info",
	TagPing:      "ping",
}

// Tags lists every query type in the order the client issues them.
var Tags = []Tag{TagInfo, TagPlayers, TagRules, TagExtraInfo, TagPing}

// Byte returns the wire representation of t.
func (t Tag) Byte() byte {
	if t.valid() {
		return tagBytes[t]
	}

	return 0
}

func (t Tag) String() string {
	if t.valid() {
		return tagNames[t]
	}

	return "unknown"
}

// Category returns the category bit of t.
func (t Tag) Category() Categories {
	if !t.valid() {
		return 0
	}

	return 1 << (t - 1)
}

func (t Tag) valid() bool {
	return t >= TagInfo && t <= TagPing
}

// ParseTag maps a wire byte back to its Tag.
func ParseTag(b byte) (Tag, bool) {
	for _, t := range Tags {
		if tagBytes[t] == b {
			return t, true
		}
	}

	return 0, false
}

// Categories is a set of query types requested in one aggregate query.
type Categories uint8

// Category bits.
const (
	CategoryInfo      = Categories(1 << (TagInfo - 1))
	CategoryPlayers   = Categories(1 << (TagPlayers - 1))
	CategoryRules     = Categories(1 << (TagRules - 1))
	CategoryExtraInfo = Categories(1 << (TagExtraInfo - 1))
	CategoryPing      = Categories(1 << (TagPing - 1))

	CategoryAll = CategoryInfo | CategoryPlayers | CategoryRules | CategoryExtraInfo | CategoryPing
)

// Has reports whether every category of other is in c.
func (c Categories) Has(other Categories) bool {
	return other != 0 && c&other == other
}

// Without returns c with other removed.
func (c Categories) Without(other Categories) Categories {
	return c &^ other
}
