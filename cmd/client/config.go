package main

import (
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	RelayURL string `envconfig:"RELAY_URL" default:"ws://localhost:8080/ws"`
	UserID   string `envconfig:"USER_ID" required:"true"`
	PeerID   string `envconfig:"PEER_ID" required:"true"`
	// RELAY_TOKEN is only needed when the relay runs with AUTH_SECRET
	Token string `envconfig:"RELAY_TOKEN"`
	// RELAY_COLOURS enables colorized output for better readability
	Colours bool `envconfig:"RELAY_COLOURS" default:"true"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
