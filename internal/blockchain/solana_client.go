package blockchain

import (
	"context"
	"errors"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/mr-tron/base58"

	"agent-ledger/internal/models"
)

const signatureLength = 64

// ErrAccountNotFound is returned when an address holds no account data.
var ErrAccountNotFound = errors.New("account not found")

// SolanaClient handles Solana blockchain reads
type SolanaClient struct {
	rpcClient *rpc.Client
	network   string
}

// NewSolanaClient creates a new Solana client. rpcURL overrides the public
// endpoint of the network when set.
func NewSolanaClient(network, rpcURL string) *SolanaClient {
	if rpcURL == "" {
		switch network {
		case "mainnet-beta":
			rpcURL = rpc.MainNetBeta_RPC
		case "testnet":
			rpcURL = rpc.TestNet_RPC
		default:
			rpcURL = rpc.DevNet_RPC
		}
	}

	return &SolanaClient{
		rpcClient: rpc.New(rpcURL),
		network:   network,
	}
}

// Network returns the configured cluster name
func (s *SolanaClient) Network() string {
	return s.network
}

// ValidateAddress validates a Solana public key in base58 form
func ValidateAddress(address string) error {
	if _, err := solana.PublicKeyFromBase58(address); err != nil {
		return fmt.Errorf("invalid solana address %q: %w", address, err)
	}
	return nil
}

// ValidateSignature validates a base58 transaction signature
func ValidateSignature(signature string) error {
	raw, err := base58.Decode(signature)
	if err != nil {
		return fmt.Errorf("invalid signature encoding: %w", err)
	}
	if len(raw) != signatureLength {
		return fmt.Errorf("invalid signature length %d", len(raw))
	}
	return nil
}

// GetTokenMetadata reads decimals and supply from the SPL mint account
func (s *SolanaClient) GetTokenMetadata(ctx context.Context, address string) (*models.TokenInfo, error) {
	mint, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return nil, fmt.Errorf("invalid mint address: %w", err)
	}

	resp, err := s.rpcClient.GetAccountInfo(ctx, mint)
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get mint account: %w", err)
	}
	if resp == nil || resp.Value == nil {
		return nil, ErrAccountNotFound
	}

	var mintAccount token.Mint
	decoder := bin.NewBinDecoder(resp.Value.Data.GetBinary())
	if err := mintAccount.UnmarshalWithDecoder(decoder); err != nil {
		return nil, fmt.Errorf("failed to decode mint data: %w", err)
	}

	return &models.TokenInfo{
		Address:  address,
		Supply:   mintAccount.Supply,
		Decimals: mintAccount.Decimals,
	}, nil
}

// GetSignatureStatus returns the confirmation status of a transaction, or
// "unknown" when the cluster has not seen it.
func (s *SolanaClient) GetSignatureStatus(ctx context.Context, signature string) (string, error) {
	sig, err := solana.SignatureFromBase58(signature)
	if err != nil {
		return "", fmt.Errorf("invalid signature: %w", err)
	}

	status, err := s.rpcClient.GetSignatureStatuses(ctx, true, sig)
	if err != nil {
		return "", fmt.Errorf("failed to get signature status: %w", err)
	}
	if len(status.Value) == 0 || status.Value[0] == nil {
		return "unknown", nil
	}
	if status.Value[0].Err != nil {
		return "failed", nil
	}
	return string(status.Value[0].ConfirmationStatus), nil
}
