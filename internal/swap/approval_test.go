package swap

import (
	"context"
	"errors"
	"math/big"
	"testing"
)

func TestEnsureApproval_SufficientAllowanceIsNoop(t *testing.T) {
	chain := newMockChain()
	chain.allowance = big.NewInt(1000)
	am := NewApprovalManager(chain, routerA, nil)

	hash, err := am.EnsureApproval(context.Background(), tokenA, big.NewInt(1000), wallet)
	if err != nil {
		t.Fatal(err)
	}
	if hash != nil {
		t.Fatalf("expected no approval tx, got %s", hash.Hex())
	}
	if len(chain.approvals) != 0 {
		t.Fatalf("expected no approve calls, got %d", len(chain.approvals))
	}
}

func TestEnsureApproval_ApprovesExactAmount(t *testing.T) {
	chain := newMockChain()
	chain.allowance = big.NewInt(10)
	am := NewApprovalManager(chain, routerA, nil)

	amount := big.NewInt(12345)
	hash, err := am.EnsureApproval(context.Background(), tokenA, amount, wallet)
	if err != nil {
		t.Fatal(err)
	}
	if hash == nil {
		t.Fatal("expected an approval tx hash")
	}
	if len(chain.approvals) != 1 || chain.approvals[0].Cmp(amount) != 0 {
		t.Fatalf("expected one approval of exactly %s, got %v", amount, chain.approvals)
	}

	// second call sees the new allowance
	if hash, err := am.EnsureApproval(context.Background(), tokenA, amount, wallet); err != nil || hash != nil {
		t.Fatalf("expected noop after approval, got %v, %v", hash, err)
	}
}

func TestEnsureApproval_RevertedApproval(t *testing.T) {
	chain := newMockChain()
	chain.failed[mockApprovalHash(1)] = true
	am := NewApprovalManager(chain, routerA, nil)

	_, err := am.EnsureApproval(context.Background(), tokenA, big.NewInt(5), wallet)
	if !errors.Is(err, ErrApprovalFailed) {
		t.Fatalf("expected ErrApprovalFailed, got %v", err)
	}
	var afe *ApprovalFailedError
	if !errors.As(err, &afe) || afe.Token != tokenA {
		t.Fatalf("expected *ApprovalFailedError for tokenA, got %v", err)
	}
}
