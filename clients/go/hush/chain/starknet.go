package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/NethermindEth/juno/core/felt"
	"github.com/NethermindEth/starknet.go/account"
	"github.com/NethermindEth/starknet.go/rpc"
	"github.com/NethermindEth/starknet.go/utils"
)

// feeMargin pads estimated fees by 50% before submission; the provider
// refunds the unused remainder.
var feeMargin = big.NewInt(150)

// starknetClient adapts a starknet.go RPC provider to the ChainClient
// interface.
type starknetClient struct {
	provider *rpc.Provider
}

// NewStarknetClient connects to a single Starknet RPC endpoint.
func NewStarknetClient(nodeURL string) (ChainClient, error) {
	provider, err := rpc.NewProvider(nodeURL)
	if err != nil {
		return nil, fmt.Errorf("rpc provider: %w", err)
	}
	return &starknetClient{provider: provider}, nil
}

func (c *starknetClient) ChainID(ctx context.Context) (string, error) {
	return c.provider.ChainID(ctx)
}

func (c *starknetClient) ClassHashAt(ctx context.Context, address string) (string, error) {
	addr, err := utils.HexToFelt(address)
	if err != nil {
		return "", fmt.Errorf("invalid address: %w", err)
	}
	classHash, err := c.provider.ClassHashAt(ctx, latestBlock(), addr)
	if err != nil {
		// An undeployed address reads as contract-not-found, not an error.
		if strings.Contains(strings.ToUpper(err.Error()), "CONTRACT_NOT_FOUND") {
			return "", nil
		}
		return "", err
	}
	if classHash == nil {
		return "", nil
	}
	return classHash.String(), nil
}

func (c *starknetClient) BalanceOf(ctx context.Context, token, address string) (*big.Int, error) {
	tokenFelt, err := utils.HexToFelt(token)
	if err != nil {
		return nil, fmt.Errorf("invalid token address: %w", err)
	}
	addrFelt, err := utils.HexToFelt(address)
	if err != nil {
		return nil, fmt.Errorf("invalid address: %w", err)
	}

	result, err := c.provider.Call(ctx, rpc.FunctionCall{
		ContractAddress:    tokenFelt,
		EntryPointSelector: utils.GetSelectorFromNameFelt("balance_of"),
		Calldata:           []*felt.Felt{addrFelt},
	}, latestBlock())
	if err != nil {
		// Older token contracts expose the camelCase entrypoint only.
		result, err = c.provider.Call(ctx, rpc.FunctionCall{
			ContractAddress:    tokenFelt,
			EntryPointSelector: utils.GetSelectorFromNameFelt("balanceOf"),
			Calldata:           []*felt.Felt{addrFelt},
		}, latestBlock())
		if err != nil {
			return nil, fmt.Errorf("balance read failed: %w", err)
		}
	}
	if len(result) < 2 {
		return nil, errors.New("unexpected uint256 balance response")
	}

	low := utils.FeltToBigInt(result[0])
	high := utils.FeltToBigInt(result[1])
	return new(big.Int).Add(new(big.Int).Lsh(high, 128), low), nil
}

func (c *starknetClient) EstimateDeployFee(ctx context.Context, params DeployParams) (*big.Int, error) {
	acct, err := c.newAccount(params.Account)
	if err != nil {
		return nil, err
	}
	tx, err := c.buildDeployTxn(ctx, acct, params, &felt.Zero)
	if err != nil {
		return nil, err
	}
	return c.estimate(ctx, tx)
}

func (c *starknetClient) EstimateTransferFee(ctx context.Context, params TransferParams) (*big.Int, error) {
	acct, err := c.newAccount(params.Account)
	if err != nil {
		return nil, err
	}
	tx, err := c.buildTransferTxn(ctx, acct, params, &felt.Zero)
	if err != nil {
		return nil, err
	}
	return c.estimate(ctx, tx)
}

func (c *starknetClient) DeployAccount(ctx context.Context, params DeployParams) (string, error) {
	acct, err := c.newAccount(params.Account)
	if err != nil {
		return "", err
	}
	fee, err := c.EstimateDeployFee(ctx, params)
	if err != nil {
		return "", fmt.Errorf("deploy fee estimate: %w", err)
	}
	tx, err := c.buildDeployTxn(ctx, acct, params, utils.BigIntToFelt(padFee(fee)))
	if err != nil {
		return "", err
	}
	resp, err := c.provider.AddDeployAccountTransaction(ctx, tx)
	if err != nil {
		return "", fmt.Errorf("deploy submission failed: %w", err)
	}
	return resp.TransactionHash.String(), nil
}

func (c *starknetClient) Transfer(ctx context.Context, params TransferParams) (string, error) {
	acct, err := c.newAccount(params.Account)
	if err != nil {
		return "", err
	}
	fee, err := c.EstimateTransferFee(ctx, params)
	if err != nil {
		return "", fmt.Errorf("transfer fee estimate: %w", err)
	}
	tx, err := c.buildTransferTxn(ctx, acct, params, utils.BigIntToFelt(padFee(fee)))
	if err != nil {
		return "", err
	}
	resp, err := c.provider.AddInvokeTransaction(ctx, tx)
	if err != nil {
		return "", fmt.Errorf("transfer submission failed: %w", err)
	}
	return resp.TransactionHash.String(), nil
}

func (c *starknetClient) TransactionStatus(ctx context.Context, txHash string) (TxStatus, error) {
	hash, err := utils.HexToFelt(txHash)
	if err != nil {
		return TxPending, fmt.Errorf("invalid transaction hash: %w", err)
	}
	status, err := c.provider.GetTransactionStatus(ctx, hash)
	if err != nil {
		return TxPending, err
	}
	return collapseStatus(string(status.FinalityStatus), string(status.ExecutionStatus)), nil
}

// collapseStatus folds finality and execution status into the three-way
// TxStatus the orchestrator polls on. Explicit rejection or reversion wins
// over any finality value.
func collapseStatus(finality, execution string) TxStatus {
	f := strings.ToUpper(finality)
	e := strings.ToUpper(execution)
	if strings.Contains(e, "REVERTED") || strings.Contains(e, "REJECTED") ||
		strings.Contains(f, "REJECTED") {
		return TxFailed
	}
	if strings.Contains(f, "ACCEPTED_ON_L2") || strings.Contains(f, "ACCEPTED_ON_L1") ||
		strings.Contains(e, "SUCCEEDED") {
		return TxSucceeded
	}
	return TxPending
}

func (c *starknetClient) newAccount(params AccountParams) (*account.Account, error) {
	addr, err := utils.HexToFelt(params.Address)
	if err != nil {
		return nil, fmt.Errorf("invalid account address: %w", err)
	}
	priv, ok := new(big.Int).SetString(strings.TrimPrefix(params.PrivateKey, "0x"), 16)
	if !ok {
		return nil, errors.New("invalid account private key")
	}
	ks := account.NewMemKeystore()
	ks.Put(params.PublicKey, priv)
	return account.NewAccount(c.provider, addr, params.PublicKey, ks, 2)
}

func (c *starknetClient) buildDeployTxn(ctx context.Context, acct *account.Account, params DeployParams, maxFee *felt.Felt) (rpc.BroadcastDeployAccountTxn, error) {
	var tx rpc.BroadcastDeployAccountTxn
	classHash, err := utils.HexToFelt(params.ClassHash)
	if err != nil {
		return tx, fmt.Errorf("invalid class hash: %w", err)
	}
	salt, err := utils.HexToFelt(params.Salt)
	if err != nil {
		return tx, fmt.Errorf("invalid salt: %w", err)
	}
	pubKey, err := utils.HexToFelt(params.Account.PublicKey)
	if err != nil {
		return tx, fmt.Errorf("invalid public key: %w", err)
	}
	addr, err := utils.HexToFelt(params.Account.Address)
	if err != nil {
		return tx, fmt.Errorf("invalid account address: %w", err)
	}

	tx.DeployAccountTxn = rpc.DeployAccountTxn{
		Type:                rpc.TransactionType_DeployAccount,
		Version:             rpc.TransactionV1,
		Nonce:               &felt.Zero,
		MaxFee:              maxFee,
		ClassHash:           classHash,
		ContractAddressSalt: salt,
		ConstructorCalldata: []*felt.Felt{pubKey},
	}
	if err := acct.SignDeployAccountTransaction(ctx, &tx.DeployAccountTxn, addr); err != nil {
		return tx, fmt.Errorf("deploy signing failed: %w", err)
	}
	return tx, nil
}

func (c *starknetClient) buildTransferTxn(ctx context.Context, acct *account.Account, params TransferParams, maxFee *felt.Felt) (rpc.BroadcastInvokev1Txn, error) {
	var tx rpc.BroadcastInvokev1Txn
	token, err := utils.HexToFelt(params.Token)
	if err != nil {
		return tx, fmt.Errorf("invalid token address: %w", err)
	}
	recipient, err := utils.HexToFelt(params.Recipient)
	if err != nil {
		return tx, fmt.Errorf("invalid recipient: %w", err)
	}

	nonce, err := c.provider.Nonce(ctx, latestBlock(), acct.AccountAddress)
	if err != nil {
		return tx, fmt.Errorf("nonce read failed: %w", err)
	}

	// amount as uint256 (low, high)
	low := new(big.Int).And(params.Amount, new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1)))
	high := new(big.Int).Rsh(params.Amount, 128)

	call := rpc.FunctionCall{
		ContractAddress:    token,
		EntryPointSelector: utils.GetSelectorFromNameFelt("transfer"),
		Calldata:           []*felt.Felt{recipient, utils.BigIntToFelt(low), utils.BigIntToFelt(high)},
	}
	calldata, err := acct.FmtCalldata([]rpc.FunctionCall{call})
	if err != nil {
		return tx, fmt.Errorf("calldata encoding failed: %w", err)
	}

	invoke := rpc.InvokeTxnV1{
		Type:          rpc.TransactionType_Invoke,
		Version:       rpc.TransactionV1,
		Nonce:         nonce,
		MaxFee:        maxFee,
		SenderAddress: acct.AccountAddress,
		Calldata:      calldata,
	}
	if err := acct.SignInvokeTransaction(ctx, &invoke); err != nil {
		return tx, fmt.Errorf("transfer signing failed: %w", err)
	}
	tx.InvokeTxnV1 = invoke
	return tx, nil
}

func (c *starknetClient) estimate(ctx context.Context, tx rpc.BroadcastTxn) (*big.Int, error) {
	estimates, err := c.provider.EstimateFee(ctx, []rpc.BroadcastTxn{tx}, []rpc.SimulationFlag{}, latestBlock())
	if err != nil {
		return nil, fmt.Errorf("fee estimate failed: %w", err)
	}
	if len(estimates) == 0 {
		return nil, errors.New("empty fee estimate response")
	}
	return utils.FeltToBigInt(estimates[0].OverallFee), nil
}

func padFee(fee *big.Int) *big.Int {
	padded := new(big.Int).Mul(fee, feeMargin)
	return padded.Div(padded, big.NewInt(100))
}

func latestBlock() rpc.BlockID {
	return rpc.WithBlockTag("latest")
}
