package query

import (
	"encoding/json"
	"fmt"
	"net"
	"strconv"
)

// PingTimeout is reported as the ping of a server that did not answer in time.
const PingTimeout uint32 = 9999

// Endpoint identifies a game server.
type Endpoint struct {
	Host string `json:"ip"`
	Port uint16 `json:"port"`
}

// Key returns the literal "host:port" string used for caching and throttling.
func (e Endpoint) Key() string {
	return e.Host + ":" + strconv.Itoa(int(e.Port))
}

func (e Endpoint) String() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(int(e.Port)))
}

// Info is the decoded answer to an info query.
type Info struct {
	Hostname   string `json:"hostname"`
	Gamemode   string `json:"gamemode"`
	Language   string `json:"language"`
	Players    uint16 `json:"players"`
	MaxPlayers uint16 `json:"max_players"`
	Password   bool   `json:"password"`
}

// Player is one entry of the players list.
type Player struct {
	Name  string `json:"name"`
	Score int32  `json:"score"`
}

// Rule is a server rule. It is serialized as a ["name", "value"] pair.
type Rule struct {
	Name  string
	Value string
}

// MarshalJSON implements json.Marshaler.
func (r Rule) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]string{r.Name, r.Value})
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *Rule) UnmarshalJSON(b []byte) error {
	var pair []string
	if err := json.Unmarshal(b, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("rule must be a [name, value] pair, got %d elements", len(pair))
	}
	r.Name, r.Value = pair[0], pair[1]

	return nil
}

// ExtraInfo is the open.mp extension carrying server branding.
// LogoURL is empty for servers that predate the logo field.
type ExtraInfo struct {
	DiscordLink    string `json:"discord_link"`
	LightBannerURL string `json:"light_banner_url"`
	DarkBannerURL  string `json:"dark_banner_url"`
	LogoURL        string `json:"logo_url"`
}

// Failure is the payload embedded in place of a category that failed.
type Failure struct {
	Info  string `json:"info"`
	Error bool   `json:"error"`
}

// Field holds the outcome of one requested category: a value or a failure.
type Field[T any] struct {
	Value   T
	Failure *Failure
}

// Ok reports whether the category succeeded.
func (f *Field[T]) Ok() bool {
	return f != nil && f.Failure == nil
}

// MarshalJSON implements json.Marshaler.
func (f Field[T]) MarshalJSON() ([]byte, error) {
	if f.Failure != nil {
		return json.Marshal(f.Failure)
	}

	return json.Marshal(f.Value)
}

func newField[T any](v T, err error) *Field[T] {
	if err != nil {
		return &Field[T]{Failure: &Failure{Error: true, Info: err.Error()}}
	}

	return &Field[T]{Value: v}
}

// Result is the aggregate answer to a multi-category query. A nil field was not
// requested (or, for extra-info, is on cooldown). Rejected is set when the query
// was refused by the rate limiter before any packet was sent.
type Result struct {
	Info      *Field[Info]      `json:"info,omitempty"`
	ExtraInfo *Field[ExtraInfo] `json:"extra_info,omitempty"`
	Players   *Field[[]Player]  `json:"players,omitempty"`
	Rules     *Field[[]Rule]    `json:"rules,omitempty"`
	Ping      *uint32           `json:"ping,omitempty"`
	Rejected  *Failure          `json:"-"`
}

// MarshalJSON implements json.Marshaler. A rejected result serializes as the bare
// {"error":true,"info":"..."} payload.
func (r Result) MarshalJSON() ([]byte, error) {
	if r.Rejected != nil {
		return json.Marshal(r.Rejected)
	}

	type plain Result
	return json.Marshal(plain(r))
}

// Response is one decoded server reply.
type Response struct {
	ExtraInfo *ExtraInfo
	Info      *Info
	Players   []Player
	Rules     []Rule
	Tag       Tag
}
