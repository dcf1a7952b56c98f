// Package fake provides utilities for generating random server history and a
// development query responder for testing and development purposes.
package fake

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/omp-launcher/internal/models"
	"github.com/woozymasta/omp-launcher/internal/query"
	"github.com/woozymasta/omp-launcher/internal/storage"
)

var (
	gamemodes = []string{"Freeroam", "Roleplay", "Deathmatch", "Race", "Drift", "Cops and Robbers", "Zombie Survival"}
	languages = []string{"English", "Russian", "Spanish", "Portuguese", "Polish", "Romanian", "Turkish"}
	prefixes  = []string{"Los Santos", "San Fierro", "Las Venturas", "Grove Street", "Liberty"}
	suffixes  = []string{"RP", "DM", "Freeroam", "Stunt", "Gang Wars", "Life"}
	nicknames = []string{"Carl_Johnson", "Big_Smoke", "Ryder", "Sweet", "Cesar", "Kendl", "Catalina", "Woozie", "Toreno"}

	// Countries list
	countriesHigh = []string{"US", "DE", "RU", "BR", "PL", "RO", "UA", "TR"}
	countriesMid  = []string{"ES", "PT", "FR", "GB", "NL", "KZ", "BY", "LT"}
	countriesLow  = []string{"AR", "MX", "IN", "ID", "VN", "RS", "BG", "HU"}
)

// RandomServer returns a random query state for the development responder.
func RandomServer() Server {
	maxPlayers := uint16(50 * (rand.Intn(20) + 1))
	online := rand.Intn(min(int(maxPlayers), len(nicknames)*4) + 1)

	players := make([]query.Player, online)
	for i := range players {
		players[i] = query.Player{
			Name:  fmt.Sprintf("%s_%d", nicknames[rand.Intn(len(nicknames))], i),
			Score: int32(rand.Intn(5000)),
		}
	}

	return Server{
		Info: query.Info{
			Password:   rand.Float32() < 0.1,
			Players:    uint16(online),
			MaxPlayers: maxPlayers,
			Hostname:   serverName(),
			Gamemode:   gamemodes[rand.Intn(len(gamemodes))],
			Language:   languages[rand.Intn(len(languages))],
		},
		Players: players,
		Rules: []query.Rule{
			{Name: "allowed_clients", Value: "0.3.7, 0.3.DL"},
			{Name: "lagcomp", Value: "On"},
			{Name: "mapname", Value: "San Andreas"},
			{Name: "version", Value: "omp 1.4.0.2779"},
			{Name: "weather", Value: fmt.Sprint(rand.Intn(20))},
			{Name: "worldtime", Value: fmt.Sprintf("%02d:00", rand.Intn(24))},
		},
		Extra: &query.ExtraInfo{
			DiscordLink:    "discord.gg/openmp",
			LightBannerURL: "https://assets.open.mp/banner_light.png",
			DarkBannerURL:  "https://assets.open.mp/banner_dark.png",
			LogoURL:        "https://assets.open.mp/logo.png",
		},
	}
}

// GenerateData populates the storage with a specified number of randomized server history records.
// It simulates various gamemodes, languages, countries and player counts.
func GenerateData(ctx context.Context, store *storage.Repository, count int) {
	// Cache for ip reuse
	type cachedIP struct {
		Address string
		Country string
	}
	var ipHistory []cachedIP

	for i := 0; i < count; i++ {
		// Random date-time in 30 days range
		daysAgo := rand.Intn(30)
		seenTime := time.Now().Add(-time.Duration(daysAgo) * 24 * time.Hour).
			Add(-time.Duration(rand.Intn(1440)) * time.Minute)

		var ip string
		var country string

		// 20% chance for reuse IP address
		if len(ipHistory) > 0 && rand.Float32() < 0.2 {
			cached := ipHistory[rand.Intn(len(ipHistory))]
			ip = cached.Address
			country = cached.Country
		} else {
			ip = fmt.Sprintf("%d.%d.%d.%d", rand.Intn(220)+1, rand.Intn(255), rand.Intn(255), rand.Intn(255))

			roll := rand.Float32()
			switch {
			case roll < 0.70:
				country = countriesHigh[rand.Intn(len(countriesHigh))]
			case roll < 0.90:
				country = countriesMid[rand.Intn(len(countriesMid))]
			default:
				country = countriesLow[rand.Intn(len(countriesLow))]
			}

			ipHistory = append(ipHistory, cachedIP{Address: ip, Country: country})
		}

		maxPlayers := 50 * (rand.Intn(20) + 1)
		record := models.ServerRecord{
			Host:        ip,
			Port:        7777 + rand.Intn(100),
			CountryCode: country,
			Hostname:    serverName(),
			Gamemode:    gamemodes[rand.Intn(len(gamemodes))],
			Language:    languages[rand.Intn(len(languages))],
			Players:     rand.Intn(maxPlayers + 1),
			MaxPlayers:  maxPlayers,
			Ping:        20 + rand.Intn(250),
			Password:    rand.Float32() < 0.1,
			FirstSeen:   seenTime.Add(-time.Hour * 24 * 7),
			LastSeen:    seenTime,
		}

		if err := store.UpsertServer(ctx, record); err != nil {
			log.Warn().Err(err).Msg("Failed to generate fake server")
		}

		if rand.Float32() < 0.3 { // 30% chance the player came back
			_ = store.UpsertServer(ctx, record)
			_ = store.UpsertServer(ctx, record)
		}
	}

	log.Info().Int("count", count).Msg("Fake server history generated")
}

func serverName() string {
	return fmt.Sprintf("[%d] %s %s | open.mp",
		rand.Intn(100), prefixes[rand.Intn(len(prefixes))], suffixes[rand.Intn(len(suffixes))])
}
