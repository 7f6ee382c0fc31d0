package swap

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

var (
	tokenA  = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	tokenB  = common.HexToAddress("0x00000000000000000000000000000000000000bb")
	weth    = common.HexToAddress("0x00000000000000000000000000000000000000ee")
	routerA = common.HexToAddress("0x0000000000000000000000000000000000000777")
	wallet  = common.HexToAddress("0x0000000000000000000000000000000000000123")
)

type mockRouter struct {
	kind     VenueKind
	pathOut  *big.Int
	pathErr  error
	tierOut  map[FeeTier]*big.Int
	tierErr  map[FeeTier]error
	probed   []FeeTier
	paths    [][]common.Address
	swaps    []SwapCall
	swapErr  error
	nextHash common.Hash
}

func (m *mockRouter) Address() common.Address { return routerA }
func (m *mockRouter) Kind() VenueKind         { return m.kind }

func (m *mockRouter) QuotePath(_ context.Context, path []common.Address, _ *big.Int) (*big.Int, error) {
	m.paths = append(m.paths, path)
	return m.pathOut, m.pathErr
}

func (m *mockRouter) QuoteSingle(_ context.Context, _, _ common.Address, fee FeeTier, _ *big.Int) (*big.Int, error) {
	m.probed = append(m.probed, fee)
	if err := m.tierErr[fee]; err != nil {
		return nil, err
	}
	if out, ok := m.tierOut[fee]; ok {
		return out, nil
	}
	return big.NewInt(0), nil
}

func (m *mockRouter) Swap(_ context.Context, call SwapCall) (common.Hash, error) {
	if m.swapErr != nil {
		return common.Hash{}, m.swapErr
	}
	m.swaps = append(m.swaps, call)
	if m.nextHash == (common.Hash{}) {
		return mockSwapHash(len(m.swaps)), nil
	}
	return m.nextHash, nil
}

type mockChain struct {
	mu        sync.Mutex
	allowance *big.Int
	approvals []*big.Int
	failed    map[common.Hash]bool
	gasUsed   uint64
	gasPrice  *big.Int
	decimals  map[common.Address]uint8
	decCalls  int
}

func newMockChain() *mockChain {
	return &mockChain{
		allowance: big.NewInt(0),
		failed:    make(map[common.Hash]bool),
		gasUsed:   150000,
		gasPrice:  big.NewInt(2_000_000_000),
		decimals:  map[common.Address]uint8{tokenA: 6, tokenB: 18, weth: 18},
	}
}

func (m *mockChain) Decimals(_ context.Context, token common.Address) (uint8, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.decCalls++
	d, ok := m.decimals[token]
	if !ok {
		return 0, fmt.Errorf("not a token")
	}
	return d, nil
}

func (m *mockChain) BalanceOf(context.Context, common.Address, common.Address) (*big.Int, error) {
	return big.NewInt(0), nil
}

func (m *mockChain) Allowance(context.Context, common.Address, common.Address, common.Address) (*big.Int, error) {
	return new(big.Int).Set(m.allowance), nil
}

func (m *mockChain) Approve(_ context.Context, _, _ common.Address, amount *big.Int) (common.Hash, error) {
	m.approvals = append(m.approvals, new(big.Int).Set(amount))
	m.allowance = new(big.Int).Set(amount)
	return mockApprovalHash(len(m.approvals)), nil
}

func mockApprovalHash(n int) common.Hash {
	return common.HexToHash(fmt.Sprintf("0x%x", 0xa000+n))
}

func mockSwapHash(n int) common.Hash {
	return common.HexToHash(fmt.Sprintf("0x%x", 0x5000+n))
}

func (m *mockChain) WaitReceipt(_ context.Context, tx common.Hash) (*types.Receipt, error) {
	status := types.ReceiptStatusSuccessful
	if m.failed[tx] {
		status = types.ReceiptStatusFailed
	}
	return &types.Receipt{
		TxHash:            tx,
		Status:            status,
		GasUsed:           m.gasUsed,
		EffectiveGasPrice: new(big.Int).Set(m.gasPrice),
	}, nil
}
