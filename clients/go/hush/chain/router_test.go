package chain

import (
	"context"
	"errors"
	"math/big"
	"testing"
)

// probeClient answers only the ChainID probe.
type probeClient struct {
	chainID string
	err     error
}

func (p *probeClient) ChainID(ctx context.Context) (string, error) { return p.chainID, p.err }

func (p *probeClient) ClassHashAt(ctx context.Context, address string) (string, error) {
	return "", nil
}

func (p *probeClient) BalanceOf(ctx context.Context, token, address string) (*big.Int, error) {
	return big.NewInt(0), nil
}

func (p *probeClient) EstimateDeployFee(ctx context.Context, params DeployParams) (*big.Int, error) {
	return big.NewInt(0), nil
}

func (p *probeClient) EstimateTransferFee(ctx context.Context, params TransferParams) (*big.Int, error) {
	return big.NewInt(0), nil
}

func (p *probeClient) DeployAccount(ctx context.Context, params DeployParams) (string, error) {
	return "", nil
}

func (p *probeClient) Transfer(ctx context.Context, params TransferParams) (string, error) {
	return "", nil
}

func (p *probeClient) TransactionStatus(ctx context.Context, txHash string) (TxStatus, error) {
	return TxPending, nil
}

func TestRouterPicksFirstHealthy(t *testing.T) {
	var dialed []string
	dial := func(nodeURL string) (ChainClient, error) {
		dialed = append(dialed, nodeURL)
		return &probeClient{chainID: "SN_SEPOLIA"}, nil
	}

	r := NewRouter([]string{"https://a", "https://b"}, dial)
	client, err := r.Pick(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if client == nil {
		t.Fatal("expected a client")
	}
	if len(dialed) != 1 || dialed[0] != "https://a" {
		t.Fatalf("expected only the first endpoint to be dialed, got %v", dialed)
	}

	health := r.Health()
	if health[0].Successes != 1 || health[0].Failures != 0 {
		t.Fatalf("first endpoint counters: %+v", health[0])
	}
	if health[1].Successes != 0 {
		t.Fatalf("second endpoint should be untouched: %+v", health[1])
	}
}

func TestRouterFailsOver(t *testing.T) {
	dial := func(nodeURL string) (ChainClient, error) {
		if nodeURL == "https://down" {
			return &probeClient{err: errors.New("connection refused")}, nil
		}
		return &probeClient{chainID: "SN_SEPOLIA"}, nil
	}

	r := NewRouter([]string{"https://down", "https://up"}, dial)
	if _, err := r.Pick(context.Background()); err != nil {
		t.Fatal(err)
	}

	health := r.Health()
	if health[0].Failures != 1 || health[0].LastError == "" {
		t.Fatalf("down endpoint counters: %+v", health[0])
	}
	if health[1].Successes != 1 {
		t.Fatalf("up endpoint counters: %+v", health[1])
	}
}

func TestRouterDialErrorCountsAsFailure(t *testing.T) {
	dial := func(nodeURL string) (ChainClient, error) {
		return nil, errors.New("bad url")
	}

	r := NewRouter([]string{"https://a", "https://b"}, dial)
	if _, err := r.Pick(context.Background()); err == nil {
		t.Fatal("expected an error when every endpoint is down")
	}

	for _, h := range r.Health() {
		if h.Failures != 1 {
			t.Fatalf("every endpoint should record one failure: %+v", h)
		}
	}
}

func TestRouterDefaultsEndpoints(t *testing.T) {
	r := NewRouter(nil, func(string) (ChainClient, error) {
		return &probeClient{chainID: "SN_SEPOLIA"}, nil
	})
	if len(r.Health()) != len(DefaultEndpoints) {
		t.Fatalf("expected default endpoints, got %d", len(r.Health()))
	}
}

func TestRouterSuccessResetsLastError(t *testing.T) {
	failing := true
	dial := func(nodeURL string) (ChainClient, error) {
		if failing {
			return &probeClient{err: errors.New("flaky")}, nil
		}
		return &probeClient{chainID: "SN_SEPOLIA"}, nil
	}

	r := NewRouter([]string{"https://a"}, dial)
	if _, err := r.Pick(context.Background()); err == nil {
		t.Fatal("first pick should fail")
	}

	failing = false
	if _, err := r.Pick(context.Background()); err != nil {
		t.Fatal(err)
	}

	h := r.Health()[0]
	if h.Failures != 1 || h.Successes != 1 || h.LastError != "" {
		t.Fatalf("counters after recovery: %+v", h)
	}
}
