package query

import (
	"encoding/binary"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/woozymasta/omp-launcher/internal/apperr"
)

var testAddr = [4]byte{127, 0, 0, 1}

func response(tag Tag, payload []byte) []byte {
	return EncodeResponse(EncodeRequest(testAddr, 7777, tag), payload)
}

func TestEncodeRequest(t *testing.T) {
	got := EncodeRequest([4]byte{192, 168, 1, 20}, 7777, TagInfo)
	assert.Equal(t, []byte{'S', 'A', 'M', 'P', 192, 168, 1, 20, 0x61, 0x1E, 'i'}, got)

	ping := EncodeRequest([4]byte{10, 0, 0, 1}, 0x1234, TagPing)
	assert.Equal(t, []byte{'S', 'A', 'M', 'P', 10, 0, 0, 1, 0x34, 0x12, 'p', 0, 0, 0, 0}, ping)
}

func TestTagWireMapping(t *testing.T) {
	want := map[Tag]byte{TagInfo: 'i', TagPlayers: 'c', TagRules: 'r', TagExtraInfo: 'o', TagPing: 'p'}
	for tag, b := range want {
		assert.Equal(t, b, tag.Byte(), tag.String())
		parsed, ok := ParseTag(b)
		require.True(t, ok)
		assert.Equal(t, tag, parsed)
	}

	_, ok := ParseTag('x')
	assert.False(t, ok)
	assert.Equal(t, byte(0), Tag(0).Byte())
	assert.Equal(t, CategoryAll, CategoryInfo|CategoryPlayers|CategoryRules|CategoryExtraInfo|CategoryPing)
}

func TestDecodeInfoRoundTrip(t *testing.T) {
	want := Info{
		Password:   false,
		Players:    5,
		MaxPlayers: 32,
		Hostname:   "Test",
		Gamemode:   "Freeroam",
		Language:   "en",
	}

	resp, err := NewCodec(nil).Decode(response(TagInfo, AppendInfo(nil, want)))
	require.NoError(t, err)
	require.NotNil(t, resp.Info)
	assert.Equal(t, TagInfo, resp.Tag)
	assert.Equal(t, want, *resp.Info)
}

func TestDecodeInfoPrimitiveFields(t *testing.T) {
	want := Info{Password: true, Players: 0xBEEF, MaxPlayers: 1000}

	payload := AppendInfo(nil, want)
	resp, err := NewCodec(nil).Decode(response(TagInfo, payload))
	require.NoError(t, err)

	reencoded := AppendInfo(nil, *resp.Info)
	assert.Equal(t, payload, reencoded)
}

func TestDecodeInfoCaps(t *testing.T) {
	tests := []struct {
		name    string
		info    Info
		wantErr string
	}{
		{name: "hostname at cap", info: Info{Hostname: strings.Repeat("h", MaxHostnameLength)}},
		{name: "hostname over cap", info: Info{Hostname: strings.Repeat("h", MaxHostnameLength+1)}, wantErr: "Hostname length exceeds maximum"},
		{name: "gamemode over cap", info: Info{Gamemode: strings.Repeat("g", MaxGamemodeLength+1)}, wantErr: "Gamemode length exceeds maximum"},
		{name: "language over cap", info: Info{Language: strings.Repeat("l", MaxLanguageLength+1)}, wantErr: "Language length exceeds maximum"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCodec(nil).Decode(response(TagInfo, AppendInfo(nil, tt.info)))
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, apperr.IsKind(err, apperr.InvalidInput))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDecodeHugeLengthDoesNotAllocate(t *testing.T) {
	payload := []byte{0}
	payload = binary.LittleEndian.AppendUint16(payload, 1)
	payload = binary.LittleEndian.AppendUint16(payload, 2)
	payload = binary.LittleEndian.AppendUint32(payload, 0xFFFFFFFF)
	packet := response(TagInfo, payload)

	codec := NewCodec(nil)
	allocs := testing.AllocsPerRun(50, func() {
		_, err := codec.Decode(packet)
		if !apperr.IsKind(err, apperr.InvalidInput) {
			t.Fatalf("expected InvalidInput, got %v", err)
		}
	})
	assert.LessOrEqual(t, allocs, float64(10))
}

func TestDecodePlayers(t *testing.T) {
	codec := NewCodec(nil)

	t.Run("order preserved", func(t *testing.T) {
		players := []Player{{Name: "zeta", Score: -3}, {Name: "alpha", Score: 120}}
		resp, err := codec.Decode(response(TagPlayers, AppendPlayers(nil, players)))
		require.NoError(t, err)
		assert.Equal(t, players, resp.Players)
	})

	t.Run("empty list", func(t *testing.T) {
		resp, err := codec.Decode(response(TagPlayers, AppendPlayers(nil, nil)))
		require.NoError(t, err)
		assert.NotNil(t, resp.Players)
		assert.Empty(t, resp.Players)
	})

	t.Run("count at maximum", func(t *testing.T) {
		players := make([]Player, MaxPlayerCount)
		for i := range players {
			players[i] = Player{Name: "p", Score: int32(i)}
		}
		resp, err := codec.Decode(response(TagPlayers, AppendPlayers(nil, players)))
		require.NoError(t, err)
		assert.Len(t, resp.Players, MaxPlayerCount)
	})

	t.Run("count over maximum", func(t *testing.T) {
		payload := binary.LittleEndian.AppendUint16(nil, MaxPlayerCount+1)
		_, err := codec.Decode(response(TagPlayers, payload))
		require.Error(t, err)
		assert.True(t, apperr.IsKind(err, apperr.InvalidInput))
		assert.Equal(t, "Invalid input: Player count exceeds maximum", err.Error())
	})

	t.Run("truncated entry", func(t *testing.T) {
		payload := AppendPlayers(nil, []Player{{Name: "alpha", Score: 1}})
		_, err := codec.Decode(response(TagPlayers, payload[:len(payload)-2]))
		require.Error(t, err)
		assert.True(t, apperr.IsKind(err, apperr.Parse))
	})
}

func TestDecodeRules(t *testing.T) {
	codec := NewCodec(nil)

	rules := []Rule{{Name: "weburl", Value: "open.mp"}, {Name: "allowed_clients", Value: "0.3.7"}, {Name: "version", Value: "omp 1.4.0"}}
	resp, err := codec.Decode(response(TagRules, AppendRules(nil, rules)))
	require.NoError(t, err)
	assert.Equal(t, rules, resp.Rules)

	payload := binary.LittleEndian.AppendUint16(nil, MaxRuleCount+1)
	_, err = codec.Decode(response(TagRules, payload))
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.InvalidInput))
}

func TestDecodeExtraInfo(t *testing.T) {
	codec := NewCodec(nil)

	t.Run("with logo", func(t *testing.T) {
		extra := ExtraInfo{
			DiscordLink:    "discord.gg/openmp",
			LightBannerURL: "https://assets.open.mp/light.png",
			DarkBannerURL:  "https://assets.open.mp/dark.png",
			LogoURL:        "https://assets.open.mp/logo.png",
		}
		resp, err := codec.Decode(response(TagExtraInfo, AppendExtraInfo(nil, extra)))
		require.NoError(t, err)
		assert.Equal(t, extra, *resp.ExtraInfo)
	})

	t.Run("without logo", func(t *testing.T) {
		extra := ExtraInfo{DiscordLink: "discord.gg/x", LightBannerURL: "l", DarkBannerURL: "d"}
		resp, err := codec.Decode(response(TagExtraInfo, AppendExtraInfo(nil, extra)))
		require.NoError(t, err)
		assert.Equal(t, extra, *resp.ExtraInfo)
		assert.Empty(t, resp.ExtraInfo.LogoURL)
	})

	t.Run("logo over cap", func(t *testing.T) {
		extra := ExtraInfo{LogoURL: strings.Repeat("u", MaxLogoURLLength+1)}
		_, err := codec.Decode(response(TagExtraInfo, AppendExtraInfo(nil, extra)))
		require.Error(t, err)
		assert.True(t, apperr.IsKind(err, apperr.InvalidInput))
	})

	t.Run("discord over cap", func(t *testing.T) {
		extra := ExtraInfo{DiscordLink: strings.Repeat("d", MaxDiscordLinkLength+1)}
		_, err := codec.Decode(response(TagExtraInfo, AppendExtraInfo(nil, extra)))
		require.Error(t, err)
		assert.True(t, apperr.IsKind(err, apperr.InvalidInput))
	})
}

func TestDecodeMalformed(t *testing.T) {
	codec := NewCodec(nil)

	_, err := codec.Decode([]byte("SAMP"))
	assert.True(t, apperr.IsKind(err, apperr.Parse))

	bad := response(TagInfo, nil)
	copy(bad, "XXXX")
	_, err = codec.Decode(bad)
	assert.True(t, apperr.IsKind(err, apperr.Parse))

	unknown := response(TagInfo, nil)
	unknown[tagOffset] = 'z'
	_, err = codec.Decode(unknown)
	assert.True(t, apperr.IsKind(err, apperr.Network))

	resp, err := codec.Decode(response(TagPing, []byte{0, 0, 0, 0}))
	require.NoError(t, err)
	assert.Equal(t, TagPing, resp.Tag)
}
