package models

// Identity is a verified identity-provider subject.
type Identity struct {
	SubjectID string
	// Twitter is set when the subject signed in with a linked X account.
	Twitter *SocialProfile
	// WalletAddress is the subject's Solana wallet, empty when none is linked.
	WalletAddress string
}
