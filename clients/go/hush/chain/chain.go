// Package chain is the Starknet RPC boundary for the claim orchestrator.
// The ChainClient interface keeps all provider specifics in one adapter so
// the orchestration logic is testable against fakes.
package chain

import (
	"context"
	"math/big"
)

// StrkTokenAddress is the STRK ERC-20 contract on Starknet Sepolia.
const StrkTokenAddress = "0x04718f5a0fc34cc1af16a1cdee98ffb20c31f5cd61d6ab07201858f4287c938d"

// TxStatus is the collapsed view of a transaction's finality and execution
// status.
type TxStatus int

const (
	// TxPending means the transaction is not yet settled either way.
	TxPending TxStatus = iota
	// TxSucceeded means the transaction was accepted and executed.
	TxSucceeded
	// TxFailed means the transaction was rejected or reverted. Explicit
	// failure is terminal; callers stop polling.
	TxFailed
)

// AccountParams identifies the stealth account the adapter signs with.
type AccountParams struct {
	Address    string
	PublicKey  string
	PrivateKey string
}

// DeployParams describes a counterfactual account deployment.
type DeployParams struct {
	Account   AccountParams
	ClassHash string
	Salt      string
}

// TransferParams describes a single ERC-20 transfer out of the account.
type TransferParams struct {
	Account   AccountParams
	Token     string
	Recipient string
	Amount    *big.Int
}

// ChainClient is everything the claim orchestrator needs from the chain.
type ChainClient interface {
	// ChainID returns the network's chain id. Also used as the health probe.
	ChainID(ctx context.Context) (string, error)

	// ClassHashAt returns the class hash deployed at address, or "" when the
	// address has no contract yet.
	ClassHashAt(ctx context.Context, address string) (string, error)

	// BalanceOf reads an ERC-20 balance as a full uint256.
	BalanceOf(ctx context.Context, token, address string) (*big.Int, error)

	// EstimateDeployFee estimates the account deployment fee.
	EstimateDeployFee(ctx context.Context, params DeployParams) (*big.Int, error)

	// EstimateTransferFee estimates the fee for a provisional transfer.
	EstimateTransferFee(ctx context.Context, params TransferParams) (*big.Int, error)

	// DeployAccount submits the deployment and returns its transaction hash.
	DeployAccount(ctx context.Context, params DeployParams) (string, error)

	// Transfer submits the ERC-20 transfer and returns its transaction hash.
	Transfer(ctx context.Context, params TransferParams) (string, error)

	// TransactionStatus reports the settled state of a transaction.
	TransactionStatus(ctx context.Context, txHash string) (TxStatus, error)
}
