package query

import (
	"bytes"
	"encoding/binary"

	"github.com/woozymasta/omp-launcher/internal/apperr"
	"github.com/woozymasta/omp-launcher/internal/textdec"
)

// Header opens every request and response packet.
var Header = []byte("SAMP")

// Packet layout.
const (
	// HeaderSize covers magic, IPv4 octets, port and the query type tag.
	HeaderSize = 11
	// tagOffset is where the query type tag lives in requests and responses.
	tagOffset = 10
	// pingEchoSize is the number of zero bytes appended to a ping request.
	pingEchoSize = 4
)

// Field caps. A length prefix above its cap fails the whole category.
const (
	MaxHostnameLength    = 63
	MaxGamemodeLength    = 39
	MaxLanguageLength    = 39
	MaxDiscordLinkLength = 50
	MaxBannerURLLength   = 160
	MaxLogoURLLength     = 160
	MaxPlayerCount       = 1000
	MaxRuleCount         = 1000
)

// EncodeRequest builds a request packet for the server at addr:port.
func EncodeRequest(addr [4]byte, port uint16, tag Tag) []byte {
	size := HeaderSize
	if tag == TagPing {
		size += pingEchoSize
	}

	packet := make([]byte, 0, size)
	packet = append(packet, Header...)
	packet = append(packet, addr[:]...)
	packet = binary.LittleEndian.AppendUint16(packet, port)
	packet = append(packet, tag.Byte())
	if tag == TagPing {
		packet = append(packet, 0, 0, 0, 0)
	}

	return packet
}

// Codec decodes response packets, passing every string through a text decoder.
type Codec struct {
	text textdec.Decoder
}

// NewCodec returns a codec using dec for string fields. A nil dec selects the
// default heuristic decoder.
func NewCodec(dec textdec.Decoder) *Codec {
	if dec == nil {
		dec = textdec.New()
	}

	return &Codec{text: dec}
}

// Decode parses a complete response packet.
func (c *Codec) Decode(packet []byte) (Response, error) {
	if len(packet) < HeaderSize {
		return Response{}, apperr.New(apperr.Parse, "response shorter than packet header")
	}
	if !bytes.Equal(packet[:len(Header)], Header) {
		return Response{}, apperr.New(apperr.Parse, "invalid response header")
	}

	tag, ok := ParseTag(packet[tagOffset])
	if !ok {
		return Response{}, apperr.Newf(apperr.Network, "unknown response type 0x%02x", packet[tagOffset])
	}

	var err error
	resp := Response{Tag: tag}
	r := newReader(packet[HeaderSize:])

	switch tag {
	case TagInfo:
		var info Info
		info, err = c.decodeInfo(r)
		resp.Info = &info
	case TagPlayers:
		resp.Players, err = c.decodePlayers(r)
	case TagRules:
		resp.Rules, err = c.decodeRules(r)
	case TagExtraInfo:
		var extra ExtraInfo
		extra, err = c.decodeExtraInfo(r)
		resp.ExtraInfo = &extra
	case TagPing:
		// the echo payload carries nothing we need
	}

	if err != nil {
		return Response{Tag: tag}, err
	}

	return resp, nil
}

func (c *Codec) text32(r *reader, field string, maxLen uint32) (string, error) {
	b, err := r.string32(field, maxLen)
	if err != nil {
		return "", err
	}
	s, _ := c.text.Decode(b)

	return s, nil
}

func (c *Codec) text8(r *reader, field string) (string, error) {
	b, err := r.string8(field)
	if err != nil {
		return "", err
	}
	s, _ := c.text.Decode(b)

	return s, nil
}

func (c *Codec) decodeInfo(r *reader) (Info, error) {
	var (
		info Info
		err  error
	)

	password, err := r.i8("password flag")
	if err != nil {
		return Info{}, err
	}
	info.Password = password != 0

	if info.Players, err = r.u16("players count"); err != nil {
		return Info{}, err
	}
	if info.MaxPlayers, err = r.u16("max players"); err != nil {
		return Info{}, err
	}
	if info.Hostname, err = c.text32(r, "hostname", MaxHostnameLength); err != nil {
		return Info{}, err
	}
	if info.Gamemode, err = c.text32(r, "gamemode", MaxGamemodeLength); err != nil {
		return Info{}, err
	}
	if info.Language, err = c.text32(r, "language", MaxLanguageLength); err != nil {
		return Info{}, err
	}

	return info, nil
}

func (c *Codec) decodePlayers(r *reader) ([]Player, error) {
	count, err := r.u16("player count")
	if err != nil {
		return nil, err
	}
	if count > MaxPlayerCount {
		return nil, apperr.New(apperr.InvalidInput, "Player count exceeds maximum")
	}

	players := make([]Player, 0, count)
	for i := 0; i < int(count); i++ {
		var p Player
		if p.Name, err = c.text8(r, "player name"); err != nil {
			return nil, err
		}
		if p.Score, err = r.i32("player score"); err != nil {
			return nil, err
		}
		players = append(players, p)
	}

	return players, nil
}

func (c *Codec) decodeRules(r *reader) ([]Rule, error) {
	count, err := r.u16("rule count")
	if err != nil {
		return nil, err
	}
	if count > MaxRuleCount {
		return nil, apperr.New(apperr.InvalidInput, "Rule count exceeds maximum")
	}

	rules := make([]Rule, 0, count)
	for i := 0; i < int(count); i++ {
		var rule Rule
		if rule.Name, err = c.text8(r, "rule name"); err != nil {
			return nil, err
		}
		if rule.Value, err = c.text8(r, "rule value"); err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}

	return rules, nil
}

func (c *Codec) decodeExtraInfo(r *reader) (ExtraInfo, error) {
	var (
		extra ExtraInfo
		err   error
	)

	if extra.DiscordLink, err = c.text32(r, "discord link", MaxDiscordLinkLength); err != nil {
		return ExtraInfo{}, err
	}
	if extra.LightBannerURL, err = c.text32(r, "light banner URL", MaxBannerURLLength); err != nil {
		return ExtraInfo{}, err
	}
	if extra.DarkBannerURL, err = c.text32(r, "dark banner URL", MaxBannerURLLength); err != nil {
		return ExtraInfo{}, err
	}

	// Logo URL was added later; older servers stop after the dark banner.
	if r.remaining() <= 4 {
		return extra, nil
	}

	n, err := r.u32("logo URL length")
	if err != nil {
		return ExtraInfo{}, err
	}
	if n > MaxLogoURLLength {
		return ExtraInfo{}, apperr.New(apperr.InvalidInput, "Logo URL length exceeds maximum")
	}
	if int(n) > r.remaining() {
		return extra, nil
	}
	logo, _ := r.take(int(n), "logo URL")
	extra.LogoURL, _ = c.text.Decode(logo)

	return extra, nil
}
