package query

import "encoding/binary"

// Server side encoding. The launcher never answers queries itself; these helpers
// back the development responder in internal/fake and the codec tests.

// EncodeResponse echoes the header of request and appends payload.
func EncodeResponse(request []byte, payload []byte) []byte {
	head := request
	if len(head) > HeaderSize {
		head = head[:HeaderSize]
	}

	out := make([]byte, 0, len(head)+len(payload))
	out = append(out, head...)

	return append(out, payload...)
}

// AppendInfo appends the info payload of i to b.
func AppendInfo(b []byte, i Info) []byte {
	var password byte
	if i.Password {
		password = 1
	}
	b = append(b, password)
	b = binary.LittleEndian.AppendUint16(b, i.Players)
	b = binary.LittleEndian.AppendUint16(b, i.MaxPlayers)
	b = appendString32(b, i.Hostname)
	b = appendString32(b, i.Gamemode)

	return appendString32(b, i.Language)
}

// AppendPlayers appends the players payload to b.
// Names longer than 255 bytes are truncated.
func AppendPlayers(b []byte, players []Player) []byte {
	b = binary.LittleEndian.AppendUint16(b, uint16(len(players)))
	for _, p := range players {
		b = appendString8(b, p.Name)
		b = binary.LittleEndian.AppendUint32(b, uint32(p.Score))
	}

	return b
}

// AppendRules appends the rules payload to b.
func AppendRules(b []byte, rules []Rule) []byte {
	b = binary.LittleEndian.AppendUint16(b, uint16(len(rules)))
	for _, r := range rules {
		b = appendString8(b, r.Name)
		b = appendString8(b, r.Value)
	}

	return b
}

// AppendExtraInfo appends the extra-info payload to b. The logo field is only
// written when LogoURL is set, matching servers that predate it.
func AppendExtraInfo(b []byte, e ExtraInfo) []byte {
	b = appendString32(b, e.DiscordLink)
	b = appendString32(b, e.LightBannerURL)
	b = appendString32(b, e.DarkBannerURL)
	if e.LogoURL != "" {
		b = appendString32(b, e.LogoURL)
	}

	return b
}

func appendString32(b []byte, s string) []byte {
	b = binary.LittleEndian.AppendUint32(b, uint32(len(s)))
	return append(b, s...)
}

func appendString8(b []byte, s string) []byte {
	if len(s) > 0xFF {
		s = s[:0xFF]
	}
	b = append(b, byte(len(s)))

	return append(b, s...)
}
