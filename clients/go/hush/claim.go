package hush

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/rs/zerolog"

	"github.com/jamin-groot/hush-starknet/clients/go/hush/chain"
)

// Phase is one step of the claim protocol.
type Phase int

const (
	PhaseNotStarted Phase = iota
	PhaseCheckingDeployment
	PhaseDeploying
	PhaseEstimatingFee
	PhaseTransferring
	PhaseConfirmingTransfer
	PhaseSweepCheck
	PhaseSweeping
	PhaseConfirmingSweep
	PhaseDone
	PhaseFailed
)

var phaseNames = map[Phase]string{
	PhaseNotStarted:         "not_started",
	PhaseCheckingDeployment: "checking_deployment",
	PhaseDeploying:          "deploying",
	PhaseEstimatingFee:      "estimating_fee",
	PhaseTransferring:       "transferring",
	PhaseConfirmingTransfer: "confirming_transfer",
	PhaseSweepCheck:         "sweep_check",
	PhaseSweeping:           "sweeping",
	PhaseConfirmingSweep:    "confirming_sweep",
	PhaseDone:               "done",
	PhaseFailed:             "failed",
}

func (p Phase) String() string { return phaseNames[p] }

// Event drives phase transitions.
type Event int

const (
	EventStart Event = iota
	EventAlreadyDeployed
	EventNotDeployed
	EventDeployConfirmed
	EventFeesEstimated
	EventTransferSubmitted
	EventTransferConfirmed
	EventSweepNeeded
	EventSweepSkipped
	EventSweepSubmitted
	EventSweepConfirmed
	EventFatal
)

// nextPhase is the pure transition function of the claim state machine.
// EventFatal moves any phase to Failed; any other unexpected pairing also
// lands in Failed so the machine can never advance on a bogus event.
func nextPhase(p Phase, e Event) Phase {
	if e == EventFatal {
		return PhaseFailed
	}
	switch {
	case p == PhaseNotStarted && e == EventStart:
		return PhaseCheckingDeployment
	case p == PhaseCheckingDeployment && e == EventAlreadyDeployed:
		return PhaseEstimatingFee
	case p == PhaseCheckingDeployment && e == EventNotDeployed:
		return PhaseDeploying
	case p == PhaseDeploying && e == EventDeployConfirmed:
		return PhaseEstimatingFee
	case p == PhaseEstimatingFee && e == EventFeesEstimated:
		return PhaseTransferring
	case p == PhaseTransferring && e == EventTransferSubmitted:
		return PhaseConfirmingTransfer
	case p == PhaseConfirmingTransfer && e == EventTransferConfirmed:
		return PhaseSweepCheck
	case p == PhaseSweepCheck && e == EventSweepNeeded:
		return PhaseSweeping
	case p == PhaseSweepCheck && e == EventSweepSkipped:
		return PhaseDone
	// Sweeping is best-effort: an abandoned sweep still completes the claim.
	case p == PhaseSweeping && e == EventSweepSkipped:
		return PhaseDone
	case p == PhaseConfirmingSweep && e == EventSweepSkipped:
		return PhaseDone
	case p == PhaseSweeping && e == EventSweepSubmitted:
		return PhaseConfirmingSweep
	case p == PhaseConfirmingSweep && e == EventSweepConfirmed:
		return PhaseDone
	}
	return PhaseFailed
}

// ClaimLedger writes the final claim status back to the message ledger, so
// persisted state never diverges from what the caller sees.
type ClaimLedger interface {
	MarkClaimFailed(ctx context.Context, messageID string) error
	MarkClaimed(ctx context.Context, messageID, claimTxHash, deployTxHash string) error
}

// ClaimRequest is one claim of a stealth payment. A nil RequestedAmount
// claims the full spendable balance.
type ClaimRequest struct {
	MessageID        string
	Stealth          StealthMetadata
	RequestedAmount  *big.Int
	RecipientAddress string
}

// ClaimResult carries the transaction hashes of a completed claim.
type ClaimResult struct {
	ClaimTxHash  string
	DeployTxHash string
	SweepTxHash  string
}

const (
	defaultPollAttempts = 40
	defaultPollInterval = 3 * time.Second
)

// Orchestrator drives a claim end to end: deploy the stealth account if
// needed, transfer the spendable balance to the recipient, sweep dust, and
// verify the receiver actually got paid.
type Orchestrator struct {
	chain      chain.ChainClient
	ledger     ClaimLedger
	logger     zerolog.Logger
	token      string
	feeReserve *big.Int

	pollAttempts int
	pollInterval time.Duration

	phase Phase
}

// NewOrchestrator builds an orchestrator over a chain client and ledger
// writer. Construct one per claim; it is not reusable across claims.
func NewOrchestrator(chainClient chain.ChainClient, ledger ClaimLedger, logger zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		chain:        chainClient,
		ledger:       ledger,
		logger:       logger,
		token:        chain.StrkTokenAddress,
		feeReserve:   new(big.Int).Set(DefaultFeeReserve),
		pollAttempts: defaultPollAttempts,
		pollInterval: defaultPollInterval,
		phase:        PhaseNotStarted,
	}
}

// SetToken overrides the claimed token contract.
func (o *Orchestrator) SetToken(token string) { o.token = token }

// SetFeeReserve overrides the per-transfer fee reserve.
func (o *Orchestrator) SetFeeReserve(reserve *big.Int) { o.feeReserve = new(big.Int).Set(reserve) }

// SetPolling overrides the confirmation polling bounds.
func (o *Orchestrator) SetPolling(attempts int, interval time.Duration) {
	o.pollAttempts = attempts
	o.pollInterval = interval
}

// Phase reports the orchestrator's current phase.
func (o *Orchestrator) Phase() Phase { return o.phase }

// Claim runs the full protocol. On any fatal error the ledger claim status
// is written as failed before the error is returned. Once a transfer is
// broadcast it cannot be recalled; cancelling the context abandons only the
// confirmation wait.
func (o *Orchestrator) Claim(ctx context.Context, req ClaimRequest) (*ClaimResult, error) {
	result, err := o.run(ctx, req)
	if err != nil {
		o.phase = nextPhase(o.phase, EventFatal)
		if o.ledger != nil && req.MessageID != "" {
			if lerr := o.ledger.MarkClaimFailed(context.WithoutCancel(ctx), req.MessageID); lerr != nil {
				o.logger.Error().Err(lerr).Str("message_id", req.MessageID).Msg("failed to record claim failure")
			}
		}
		return nil, err
	}
	if o.ledger != nil && req.MessageID != "" {
		if lerr := o.ledger.MarkClaimed(ctx, req.MessageID, result.ClaimTxHash, result.DeployTxHash); lerr != nil {
			o.logger.Error().Err(lerr).Str("message_id", req.MessageID).Msg("failed to record claim success")
		}
	}
	return result, nil
}

func (o *Orchestrator) run(ctx context.Context, req ClaimRequest) (*ClaimResult, error) {
	if !req.Stealth.Complete() {
		return nil, ErrStealthMetadataIncomplete
	}
	recipient := normalizeHex(req.RecipientAddress)
	stealthAddr := normalizeHex(req.Stealth.StealthAddress)
	if recipient == stealthAddr {
		return nil, ErrSelfClaimRejected
	}
	privateKey, err := NormalizeStealthPrivateKey(req.Stealth.StealthPrivateKey)
	if err != nil {
		return nil, err
	}

	account := chain.AccountParams{
		Address:    stealthAddr,
		PublicKey:  normalizeHex(req.Stealth.StealthPublicKey),
		PrivateKey: privateKey,
	}
	result := &ClaimResult{}

	o.phase = nextPhase(o.phase, EventStart)
	deployedClass, err := o.chain.ClassHashAt(ctx, stealthAddr)
	if err != nil {
		return nil, fmt.Errorf("deployment check failed: %w", err)
	}

	if deployedClass == "" {
		o.phase = nextPhase(o.phase, EventNotDeployed)
		deployTxHash, err := o.chain.DeployAccount(ctx, chain.DeployParams{
			Account:   account,
			ClassHash: normalizeHex(req.Stealth.ClassHash),
			Salt:      normalizeHex(req.Stealth.Salt),
		})
		if err != nil {
			return nil, fmt.Errorf("stealth deployment failed: %w", err)
		}
		result.DeployTxHash = deployTxHash
		o.logger.Info().Str("tx", deployTxHash).Msg("stealth account deployment submitted")
		if err := o.waitForTransaction(ctx, deployTxHash); err != nil {
			return nil, err
		}
		o.phase = nextPhase(o.phase, EventDeployConfirmed)
	} else {
		o.phase = nextPhase(o.phase, EventAlreadyDeployed)
	}

	receiverBefore, err := o.chain.BalanceOf(ctx, o.token, recipient)
	if err != nil {
		return nil, fmt.Errorf("receiver balance read failed: %w", err)
	}
	balance, err := o.chain.BalanceOf(ctx, o.token, stealthAddr)
	if err != nil {
		return nil, fmt.Errorf("stealth balance read failed: %w", err)
	}

	transferFee, err := o.chain.EstimateTransferFee(ctx, chain.TransferParams{
		Account:   account,
		Token:     o.token,
		Recipient: recipient,
		Amount:    balance,
	})
	if err != nil {
		// Fee estimation against an undeployed or freshly deployed account
		// can be flaky; the reserve alone still bounds the transfer.
		o.logger.Warn().Err(err).Msg("transfer fee estimate unavailable, relying on reserve")
		transferFee = big.NewInt(0)
	}

	// Deployment fees were already paid by the deploy transaction, so the
	// planner sees them as zero here.
	spendable := ComputeSpendable(balance, big.NewInt(0), transferFee, o.feeReserve)
	requested := req.RequestedAmount
	if requested == nil {
		requested = spendable
	}
	transferAmount := PickTransferAmount(requested, spendable)
	if transferAmount.Sign() <= 0 {
		return nil, ErrInsufficientClaimableBalance
	}
	o.phase = nextPhase(o.phase, EventFeesEstimated)

	claimTxHash, err := o.chain.Transfer(ctx, chain.TransferParams{
		Account:   account,
		Token:     o.token,
		Recipient: recipient,
		Amount:    transferAmount,
	})
	if err != nil {
		return nil, fmt.Errorf("claim transfer failed: %w", err)
	}
	result.ClaimTxHash = claimTxHash
	o.phase = nextPhase(o.phase, EventTransferSubmitted)
	o.logger.Info().Str("tx", claimTxHash).Str("amount", transferAmount.String()).Msg("claim transfer submitted")

	if err := o.waitForTransaction(ctx, claimTxHash); err != nil {
		return nil, err
	}
	o.phase = nextPhase(o.phase, EventTransferConfirmed)

	o.sweep(ctx, account, recipient, result)

	receiverAfter, err := o.chain.BalanceOf(ctx, o.token, recipient)
	if err != nil {
		return nil, fmt.Errorf("receiver balance re-read failed: %w", err)
	}
	if !HasPositiveReceiverDelta(receiverBefore, receiverAfter) {
		return nil, ErrClaimVerificationFailed
	}

	return result, nil
}

// sweep moves any residual balance worth moving after the primary claim.
// Best-effort: a failed sweep never rolls back the claim.
func (o *Orchestrator) sweep(ctx context.Context, account chain.AccountParams, recipient string, result *ClaimResult) {
	remaining, err := o.chain.BalanceOf(ctx, o.token, account.Address)
	if err != nil {
		o.logger.Warn().Err(err).Msg("sweep balance read failed")
		o.phase = nextPhase(o.phase, EventSweepSkipped)
		return
	}

	threshold := new(big.Int).Mul(o.feeReserve, big.NewInt(2))
	if remaining.Cmp(threshold) <= 0 {
		o.phase = nextPhase(o.phase, EventSweepSkipped)
		return
	}
	sweepAmount := new(big.Int).Sub(remaining, o.feeReserve)

	o.phase = nextPhase(o.phase, EventSweepNeeded)
	sweepTxHash, err := o.chain.Transfer(ctx, chain.TransferParams{
		Account:   account,
		Token:     o.token,
		Recipient: recipient,
		Amount:    sweepAmount,
	})
	if err != nil {
		o.logger.Warn().Err(err).Msg("dust sweep failed")
		o.phase = nextPhase(o.phase, EventSweepSkipped)
		return
	}
	result.SweepTxHash = sweepTxHash
	o.phase = nextPhase(o.phase, EventSweepSubmitted)
	o.logger.Info().Str("tx", sweepTxHash).Str("amount", sweepAmount.String()).Msg("dust sweep submitted")

	if err := o.waitForTransaction(ctx, sweepTxHash); err != nil {
		o.logger.Warn().Err(err).Msg("dust sweep confirmation failed")
		o.phase = nextPhase(o.phase, EventSweepSkipped)
		return
	}
	o.phase = nextPhase(o.phase, EventSweepConfirmed)
}

// waitForTransaction polls the transaction status up to the bounded attempt
// count. Explicit rejection or reversion is immediately fatal; transient RPC
// errors just consume an attempt.
func (o *Orchestrator) waitForTransaction(ctx context.Context, txHash string) error {
	for attempt := 0; attempt < o.pollAttempts; attempt++ {
		status, err := o.chain.TransactionStatus(ctx, txHash)
		if err == nil {
			switch status {
			case chain.TxSucceeded:
				return nil
			case chain.TxFailed:
				return fmt.Errorf("transaction %s was rejected or reverted", txHash)
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(o.pollInterval):
		}
	}
	return ErrClaimTimedOut
}
