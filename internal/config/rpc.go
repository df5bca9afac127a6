package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/gagliardetto/solana-go"
)

type RPCConfig struct {
	RPCUrl    string
	WSUrl     string
	RPCApiKey string
	// Payer is the wallet whose token accounts fund and receive each cycle.
	Payer solana.PublicKey
}

func (r *RPCConfig) Key() string {
	return RPC_CONFIG_KEY
}

func (r *RPCConfig) Load() error {
	r.RPCUrl = os.Getenv("RPC_URL")
	r.WSUrl = os.Getenv("WS_URL")
	r.RPCApiKey = os.Getenv("RPC_KEY")
	if raw := os.Getenv("PAYER_ADDRESS"); raw != "" {
		payer, err := solana.PublicKeyFromBase58(raw)
		if err != nil {
			return fmt.Errorf("PAYER_ADDRESS: %w", err)
		}
		r.Payer = payer
	}
	return nil
}

func (r *RPCConfig) Validate() error {
	if r.RPCUrl == "" {
		return errors.New("invalid rpc config")
	}
	return nil
}
