package hush

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/jamin-groot/hush-starknet/clients/go/hush/chain"
)

func TestNextPhase(t *testing.T) {
	cases := []struct {
		name  string
		phase Phase
		event Event
		want  Phase
	}{
		{"start", PhaseNotStarted, EventStart, PhaseCheckingDeployment},
		{"already deployed", PhaseCheckingDeployment, EventAlreadyDeployed, PhaseEstimatingFee},
		{"needs deploy", PhaseCheckingDeployment, EventNotDeployed, PhaseDeploying},
		{"deploy confirmed", PhaseDeploying, EventDeployConfirmed, PhaseEstimatingFee},
		{"fees estimated", PhaseEstimatingFee, EventFeesEstimated, PhaseTransferring},
		{"transfer submitted", PhaseTransferring, EventTransferSubmitted, PhaseConfirmingTransfer},
		{"transfer confirmed", PhaseConfirmingTransfer, EventTransferConfirmed, PhaseSweepCheck},
		{"sweep needed", PhaseSweepCheck, EventSweepNeeded, PhaseSweeping},
		{"sweep skipped from check", PhaseSweepCheck, EventSweepSkipped, PhaseDone},
		{"sweep abandoned mid flight", PhaseSweeping, EventSweepSkipped, PhaseDone},
		{"sweep abandoned while confirming", PhaseConfirmingSweep, EventSweepSkipped, PhaseDone},
		{"sweep submitted", PhaseSweeping, EventSweepSubmitted, PhaseConfirmingSweep},
		{"sweep confirmed", PhaseConfirmingSweep, EventSweepConfirmed, PhaseDone},
		{"fatal from start", PhaseNotStarted, EventFatal, PhaseFailed},
		{"fatal mid transfer", PhaseConfirmingTransfer, EventFatal, PhaseFailed},
		{"bogus pairing fails", PhaseDeploying, EventTransferConfirmed, PhaseFailed},
		{"done accepts nothing", PhaseDone, EventStart, PhaseFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := nextPhase(tc.phase, tc.event); got != tc.want {
				t.Fatalf("nextPhase(%s, %d) = %s, want %s", tc.phase, tc.event, got, tc.want)
			}
		})
	}
}

// fakeChain simulates a deployed token and a stealth account balance. All
// amounts are in the token's smallest unit.
type fakeChain struct {
	deployed     bool
	balances     map[string]*big.Int
	transferFee  *big.Int
	feeErr       error
	status       chain.TxStatus
	pendingPolls int

	deployCount   int
	transferCount int
	transfers     []*big.Int
}

func newFakeChain() *fakeChain {
	return &fakeChain{
		deployed:    true,
		balances:    map[string]*big.Int{},
		transferFee: big.NewInt(0),
		status:      chain.TxSucceeded,
	}
}

func (f *fakeChain) setBalance(addr string, amount *big.Int) {
	f.balances[addr] = new(big.Int).Set(amount)
}

func (f *fakeChain) ChainID(ctx context.Context) (string, error) { return "SN_SEPOLIA", nil }

func (f *fakeChain) ClassHashAt(ctx context.Context, address string) (string, error) {
	if !f.deployed {
		return "", nil
	}
	return "0xclass", nil
}

func (f *fakeChain) BalanceOf(ctx context.Context, token, address string) (*big.Int, error) {
	if b, ok := f.balances[address]; ok {
		return new(big.Int).Set(b), nil
	}
	return big.NewInt(0), nil
}

func (f *fakeChain) EstimateDeployFee(ctx context.Context, params chain.DeployParams) (*big.Int, error) {
	return big.NewInt(0), nil
}

func (f *fakeChain) EstimateTransferFee(ctx context.Context, params chain.TransferParams) (*big.Int, error) {
	if f.feeErr != nil {
		return nil, f.feeErr
	}
	return new(big.Int).Set(f.transferFee), nil
}

func (f *fakeChain) DeployAccount(ctx context.Context, params chain.DeployParams) (string, error) {
	f.deployCount++
	f.deployed = true
	return "0xdeploytx", nil
}

func (f *fakeChain) Transfer(ctx context.Context, params chain.TransferParams) (string, error) {
	f.transferCount++
	f.transfers = append(f.transfers, new(big.Int).Set(params.Amount))

	from := f.balances[params.Account.Address]
	if from != nil {
		from.Sub(from, params.Amount)
	}
	to, ok := f.balances[params.Recipient]
	if !ok {
		to = big.NewInt(0)
		f.balances[params.Recipient] = to
	}
	to.Add(to, params.Amount)
	return "0xtransfertx", nil
}

func (f *fakeChain) TransactionStatus(ctx context.Context, txHash string) (chain.TxStatus, error) {
	if f.pendingPolls > 0 {
		f.pendingPolls--
		return chain.TxPending, nil
	}
	return f.status, nil
}

// fakeLedger records claim status writes.
type fakeLedger struct {
	failed  []string
	claimed []string
}

func (l *fakeLedger) MarkClaimFailed(ctx context.Context, messageID string) error {
	l.failed = append(l.failed, messageID)
	return nil
}

func (l *fakeLedger) MarkClaimed(ctx context.Context, messageID, claimTxHash, deployTxHash string) error {
	l.claimed = append(l.claimed, messageID)
	return nil
}

func strk(s string) *big.Int {
	amount, err := ParseTokenAmount(s)
	if err != nil {
		panic(err)
	}
	return amount
}

func testClaimRequest() ClaimRequest {
	return ClaimRequest{
		MessageID: "msg-1",
		Stealth: StealthMetadata{
			StealthAddress:    "0xstealth",
			StealthPrivateKey: "0x7",
			StealthPublicKey:  "0x8",
			Salt:              "0x9",
			ClassHash:         DefaultAccountClassHash,
			DerivationTag:     "0xa",
		},
		RequestedAmount:  strk("10"),
		RecipientAddress: "0xreceiver",
	}
}

func testOrchestrator(client chain.ChainClient, ledger ClaimLedger) *Orchestrator {
	o := NewOrchestrator(client, ledger, zerolog.Nop())
	o.SetPolling(3, time.Millisecond)
	return o
}

func TestClaimHappyPath(t *testing.T) {
	fc := newFakeChain()
	fc.setBalance("0xstealth", strk("10.02"))
	fc.transferFee = strk("0.01")
	ledger := &fakeLedger{}

	o := testOrchestrator(fc, ledger)
	o.SetFeeReserve(strk("0.005"))

	result, err := o.Claim(context.Background(), testClaimRequest())
	if err != nil {
		t.Fatal(err)
	}
	if o.Phase() != PhaseDone {
		t.Fatalf("phase = %s, want done", o.Phase())
	}

	// spendable = 10.02 - 0.01 fee - 0.005 reserve = 10.005; requested 10 wins.
	if len(fc.transfers) == 0 || fc.transfers[0].Cmp(strk("10")) != 0 {
		t.Fatalf("transfer amount = %v, want exactly 10 STRK", fc.transfers)
	}
	if result.ClaimTxHash != "0xtransfertx" {
		t.Fatalf("claim tx = %s", result.ClaimTxHash)
	}
	if result.DeployTxHash != "" {
		t.Fatal("no deployment expected for a deployed account")
	}
	if len(ledger.claimed) != 1 || ledger.claimed[0] != "msg-1" {
		t.Fatalf("ledger claimed = %v", ledger.claimed)
	}
	if len(ledger.failed) != 0 {
		t.Fatalf("ledger failed = %v", ledger.failed)
	}
}

func TestClaimDeploysWhenUndeployed(t *testing.T) {
	fc := newFakeChain()
	fc.deployed = false
	fc.setBalance("0xstealth", strk("1"))
	ledger := &fakeLedger{}

	o := testOrchestrator(fc, ledger)
	result, err := o.Claim(context.Background(), testClaimRequest())
	if err != nil {
		t.Fatal(err)
	}
	if fc.deployCount != 1 {
		t.Fatalf("deploy count = %d, want 1", fc.deployCount)
	}
	if result.DeployTxHash != "0xdeploytx" {
		t.Fatalf("deploy tx = %s", result.DeployTxHash)
	}
}

func TestClaimCapsAtSpendable(t *testing.T) {
	fc := newFakeChain()
	fc.setBalance("0xstealth", strk("1"))
	ledger := &fakeLedger{}

	o := testOrchestrator(fc, ledger)
	o.SetFeeReserve(strk("0.02"))

	req := testClaimRequest()
	req.RequestedAmount = strk("5")
	if _, err := o.Claim(context.Background(), req); err != nil {
		t.Fatal(err)
	}
	// Full balance minus the reserve; fee estimate is zero in the fake.
	if fc.transfers[0].Cmp(strk("0.98")) != 0 {
		t.Fatalf("transfer amount = %s, want 0.98 STRK", fc.transfers[0])
	}
}

func TestClaimNilAmountClaimsEverything(t *testing.T) {
	fc := newFakeChain()
	fc.setBalance("0xstealth", strk("1"))
	ledger := &fakeLedger{}

	o := testOrchestrator(fc, ledger)
	req := testClaimRequest()
	req.RequestedAmount = nil
	if _, err := o.Claim(context.Background(), req); err != nil {
		t.Fatal(err)
	}
	// Full balance minus the default 0.02 reserve.
	if len(fc.transfers) == 0 || fc.transfers[0].Cmp(strk("0.98")) != 0 {
		t.Fatalf("transfer amount = %v, want 0.98 STRK", fc.transfers)
	}
}

func TestClaimSweepsResidual(t *testing.T) {
	fc := newFakeChain()
	// After transferring 1, the stealth account keeps 0.1: above twice the
	// 0.02 reserve, so the sweep fires for 0.08.
	fc.setBalance("0xstealth", strk("1.1"))
	ledger := &fakeLedger{}

	o := testOrchestrator(fc, ledger)
	req := testClaimRequest()
	req.RequestedAmount = strk("1")
	result, err := o.Claim(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if result.SweepTxHash == "" {
		t.Fatal("expected a sweep transaction")
	}
	if len(fc.transfers) != 2 {
		t.Fatalf("transfer count = %d, want claim plus sweep", len(fc.transfers))
	}
	if fc.transfers[1].Cmp(strk("0.08")) != 0 {
		t.Fatalf("sweep amount = %s, want 0.08 STRK", fc.transfers[1])
	}
}

func TestClaimSkipsDustSweep(t *testing.T) {
	fc := newFakeChain()
	// Residual 0.03 is under twice the 0.02 reserve; not worth a fee.
	fc.setBalance("0xstealth", strk("1.03"))
	ledger := &fakeLedger{}

	o := testOrchestrator(fc, ledger)
	req := testClaimRequest()
	req.RequestedAmount = strk("1")
	result, err := o.Claim(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if result.SweepTxHash != "" {
		t.Fatal("dust should not be swept")
	}
	if o.Phase() != PhaseDone {
		t.Fatalf("phase = %s, want done", o.Phase())
	}
}

func TestClaimRejectsIncompleteMetadata(t *testing.T) {
	fc := newFakeChain()
	ledger := &fakeLedger{}

	o := testOrchestrator(fc, ledger)
	req := testClaimRequest()
	req.Stealth.Salt = ""
	_, err := o.Claim(context.Background(), req)
	if !errors.Is(err, ErrStealthMetadataIncomplete) {
		t.Fatalf("expected ErrStealthMetadataIncomplete, got %v", err)
	}
	if o.Phase() != PhaseFailed {
		t.Fatalf("phase = %s, want failed", o.Phase())
	}
	if len(ledger.failed) != 1 {
		t.Fatalf("ledger should record the failure, got %v", ledger.failed)
	}
}

func TestClaimRejectsSelfClaim(t *testing.T) {
	fc := newFakeChain()
	o := testOrchestrator(fc, &fakeLedger{})

	req := testClaimRequest()
	req.RecipientAddress = req.Stealth.StealthAddress
	if _, err := o.Claim(context.Background(), req); !errors.Is(err, ErrSelfClaimRejected) {
		t.Fatalf("expected ErrSelfClaimRejected, got %v", err)
	}
}

func TestClaimInsufficientBalance(t *testing.T) {
	fc := newFakeChain()
	fc.setBalance("0xstealth", strk("0.01")) // below the default reserve
	ledger := &fakeLedger{}

	o := testOrchestrator(fc, ledger)
	_, err := o.Claim(context.Background(), testClaimRequest())
	if !errors.Is(err, ErrInsufficientClaimableBalance) {
		t.Fatalf("expected ErrInsufficientClaimableBalance, got %v", err)
	}
	if len(ledger.failed) != 1 {
		t.Fatal("insufficient balance should be recorded as failed")
	}
	if fc.transferCount != 0 {
		t.Fatal("no transfer should be attempted")
	}
}

func TestClaimTimesOut(t *testing.T) {
	fc := newFakeChain()
	fc.setBalance("0xstealth", strk("1"))
	fc.pendingPolls = 1000
	ledger := &fakeLedger{}

	o := testOrchestrator(fc, ledger)
	_, err := o.Claim(context.Background(), testClaimRequest())
	if !errors.Is(err, ErrClaimTimedOut) {
		t.Fatalf("expected ErrClaimTimedOut, got %v", err)
	}
}

func TestClaimRevertedTransferFails(t *testing.T) {
	fc := newFakeChain()
	fc.setBalance("0xstealth", strk("1"))
	fc.status = chain.TxFailed
	ledger := &fakeLedger{}

	o := testOrchestrator(fc, ledger)
	_, err := o.Claim(context.Background(), testClaimRequest())
	if err == nil {
		t.Fatal("reverted transfer must fail the claim")
	}
	if o.Phase() != PhaseFailed {
		t.Fatalf("phase = %s, want failed", o.Phase())
	}
}

func TestClaimFeeEstimateFailureDegrades(t *testing.T) {
	fc := newFakeChain()
	fc.setBalance("0xstealth", strk("1"))
	fc.feeErr = errors.New("rpc unreachable")
	ledger := &fakeLedger{}

	o := testOrchestrator(fc, ledger)
	req := testClaimRequest()
	req.RequestedAmount = strk("5")
	if _, err := o.Claim(context.Background(), req); err != nil {
		t.Fatalf("fee estimate failure should not be fatal: %v", err)
	}
	// With the estimate unavailable, only the reserve bounds the transfer.
	if fc.transfers[0].Cmp(strk("0.98")) != 0 {
		t.Fatalf("transfer amount = %s, want 0.98 STRK", fc.transfers[0])
	}
}

func TestClaimVerifiesReceiverDelta(t *testing.T) {
	fc := &verificationChain{fakeChain: newFakeChain()}
	fc.setBalance("0xstealth", strk("1"))
	ledger := &fakeLedger{}

	o := testOrchestrator(fc, ledger)
	_, err := o.Claim(context.Background(), testClaimRequest())
	if !errors.Is(err, ErrClaimVerificationFailed) {
		t.Fatalf("expected ErrClaimVerificationFailed, got %v", err)
	}
}

// verificationChain drops transfers on the floor so the receiver balance
// never moves.
type verificationChain struct {
	*fakeChain
}

func (v *verificationChain) Transfer(ctx context.Context, params chain.TransferParams) (string, error) {
	from := v.balances[params.Account.Address]
	if from != nil {
		from.Sub(from, params.Amount)
	}
	return "0xtransfertx", nil
}
