package swap

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/sirupsen/logrus"
)

// ApprovalManager keeps the router's allowance at least as large as the next
// trade, approving the exact amount and never an unlimited one.
type ApprovalManager struct {
	chain   Chain
	spender common.Address
	log     logrus.FieldLogger
}

func NewApprovalManager(chain Chain, spender common.Address, log logrus.FieldLogger) *ApprovalManager {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &ApprovalManager{chain: chain, spender: spender, log: log.WithField("component", "approval")}
}

// EnsureApproval returns nil when the current allowance already covers
// amount; otherwise it approves exactly amount, waits for the receipt and
// returns the approval transaction hash.
func (a *ApprovalManager) EnsureApproval(ctx context.Context, token common.Address, amount *big.Int, owner common.Address) (*common.Hash, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	current, err := a.chain.Allowance(ctx, token, owner, a.spender)
	if err != nil {
		return nil, fmt.Errorf("allowance call: %w", err)
	}
	if current.Cmp(amount) >= 0 {
		return nil, nil
	}

	entry := a.log.WithFields(logrus.Fields{
		"token":   token.Hex(),
		"current": current.String(),
		"amount":  amount.String(),
	})
	entry.Info("approving router allowance")

	hash, err := a.chain.Approve(ctx, token, a.spender, new(big.Int).Set(amount))
	if err != nil {
		return nil, fmt.Errorf("approve tx: %w", err)
	}
	receipt, err := a.chain.WaitReceipt(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("wait approval %s: %w", hash.Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, &ApprovalFailedError{Token: token, TxHash: hash}
	}
	entry.WithField("tx", hash.Hex()).Info("allowance confirmed")
	return &hash, nil
}
