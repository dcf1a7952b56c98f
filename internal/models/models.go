// Package models defines the data structures used for RPC payloads and database persistence.
package models

import "time"

// RPCRequest is the envelope of every RPC call: {"params": {...}}.
type RPCRequest[T any] struct {
	Params T `json:"params"`
}

// EndpointParams identifies a server for the single category query methods.
type EndpointParams struct {
	IP   string `json:"ip"`
	Port int    `json:"port"`
}

// QueryParams selects the categories of an aggregate query.
type QueryParams struct {
	IP        string `json:"ip"`
	Port      int    `json:"port"`
	Info      bool   `json:"info"`
	ExtraInfo bool   `json:"extra_info"`
	Players   bool   `json:"players"`
	Rules     bool   `json:"rules"`
	Ping      bool   `json:"ping"`
}

// InjectParams is the payload of the launch method.
type InjectParams struct {
	Name          string `json:"name"`
	IP            string `json:"ip"`
	Exe           string `json:"exe"`
	DLL           string `json:"dll"`
	OMPFile       string `json:"omp_file"`
	Password      string `json:"password"`
	CustomGameExe string `json:"custom_game_exe"`
	Port          int    `json:"port"`
}

// StorageParams addresses one key of the key-value store.
type StorageParams struct {
	Key   string `json:"key"`
	Value string `json:"value,omitempty"`
}

// ErrorResponse is the error payload returned by RPC methods.
type ErrorResponse struct {
	Info  string `json:"info"`
	Error bool   `json:"error"`
}

// ServerRecord is a server seen by the launcher, stored in the history table.
type ServerRecord struct {
	FirstSeen   time.Time `json:"first_seen"`
	LastSeen    time.Time `json:"last_seen"`
	Host        string    `json:"ip"`
	CountryCode string    `json:"country_code"`
	Hostname    string    `json:"hostname"`
	Gamemode    string    `json:"gamemode"`
	Language    string    `json:"language"`
	Port        int       `json:"port"`
	Count       int64     `json:"count"`
	Players     int       `json:"players"`
	MaxPlayers  int       `json:"max_players"`
	Ping        int       `json:"ping"` // negative when not measured
	Password    bool      `json:"password"`
}
