package ethereum

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	geth "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/kjannette/trahn-swapgrid/internal/retry"
)

// Backend is the subset of ethclient.Client the chain layer uses.
type Backend interface {
	geth.ContractCaller
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
}

var _ Backend = (*ethclient.Client)(nil)

type ClientConfig struct {
	RPCURL        string
	PrivateKey    string
	ChainID       int64
	GasLimit      uint64
	GasMultiplier float64

	// RateLimit caps read calls per second; zero disables limiting.
	RateLimit    float64
	PollInterval time.Duration
	Retry        retry.Config
	Log          logrus.FieldLogger
}

// Client signs and sends transactions for one wallet and serves the ERC-20
// reads the swap layer needs.
type Client struct {
	backend    Backend
	closer     func()
	privateKey *ecdsa.PrivateKey
	wallet     common.Address
	chainID    *big.Int
	gasLimit   uint64
	gasMul     float64
	limiter    *rate.Limiter
	poll       time.Duration
	retry      retry.Config
	erc20ABI   abi.ABI
	log        logrus.FieldLogger

	sendMu sync.Mutex
}

func NewClient(cfg ClientConfig) (*Client, error) {
	rpcClient, err := ethclient.Dial(cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial RPC: %w", err)
	}
	c, err := NewClientWithBackend(rpcClient, cfg)
	if err != nil {
		rpcClient.Close()
		return nil, err
	}
	c.closer = rpcClient.Close
	return c, nil
}

// NewClientWithBackend builds a Client over an existing backend (a simulated
// chain in tests).
func NewClientWithBackend(backend Backend, cfg ClientConfig) (*Client, error) {
	pk, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	eABI, err := abi.JSON(erc20ABI())
	if err != nil {
		return nil, fmt.Errorf("parse ERC20 ABI: %w", err)
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), max(1, int(cfg.RateLimit)))
	}
	if cfg.GasMultiplier <= 0 {
		cfg.GasMultiplier = 1
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = retry.Default
	}
	if cfg.Log == nil {
		cfg.Log = logrus.StandardLogger()
	}

	return &Client{
		backend:    backend,
		closer:     func() {},
		privateKey: pk,
		wallet:     crypto.PubkeyToAddress(pk.PublicKey),
		chainID:    big.NewInt(cfg.ChainID),
		gasLimit:   cfg.GasLimit,
		gasMul:     cfg.GasMultiplier,
		limiter:    limiter,
		poll:       cfg.PollInterval,
		retry:      cfg.Retry,
		erc20ABI:   eABI,
		log:        cfg.Log.WithField("component", "chain"),
	}, nil
}

func (c *Client) WalletAddress() common.Address { return c.wallet }
func (c *Client) GasLimit() uint64              { return c.gasLimit }
func (c *Client) Close()                        { c.closer() }

func (c *Client) NativeBalance(ctx context.Context) (*big.Int, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return c.backend.BalanceAt(ctx, c.wallet, nil)
}

func (c *Client) GasPrice(ctx context.Context) (*big.Int, error) {
	price, err := c.backend.SuggestGasPrice(ctx)
	if err != nil {
		return nil, err
	}
	mul := new(big.Float).SetFloat64(c.gasMul)
	adjusted := new(big.Float).Mul(new(big.Float).SetInt(price), mul)
	result, _ := adjusted.Int(nil)
	return result, nil
}

// SendTx signs a legacy transaction from the wallet and broadcasts it.
// Sends are serialized so concurrent callers never race on the nonce.
func (c *Client) SendTx(ctx context.Context, to common.Address, value *big.Int, data []byte) (common.Hash, error) {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	nonce, err := c.backend.PendingNonceAt(ctx, c.wallet)
	if err != nil {
		return common.Hash{}, fmt.Errorf("get nonce: %w", err)
	}
	gasPrice, err := c.GasPrice(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("get gas price: %w", err)
	}
	if value == nil {
		value = new(big.Int)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    value,
		Gas:      c.gasLimit,
		GasPrice: gasPrice,
		Data:     data,
	})

	signed, err := types.SignTx(tx, types.NewEIP155Signer(c.chainID), c.privateKey)
	if err != nil {
		return common.Hash{}, fmt.Errorf("sign tx: %w", err)
	}
	if err := c.backend.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, fmt.Errorf("send tx: %w", err)
	}

	c.log.WithFields(logrus.Fields{
		"tx":    signed.Hash().Hex(),
		"to":    to.Hex(),
		"nonce": nonce,
	}).Debug("transaction sent")
	return signed.Hash(), nil
}

// CallContract performs a rate-limited read-only eth_call. Transport errors
// are retried; JSON-RPC errors such as reverts are returned at once.
func (c *Client) CallContract(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	var out []byte
	err := retry.Do(ctx, c.retry, c.log, func(ctx context.Context) error {
		if err := c.limiter.Wait(ctx); err != nil {
			return retry.Permanent(err)
		}
		res, err := c.backend.CallContract(ctx, geth.CallMsg{From: c.wallet, To: &to, Data: data}, nil)
		if err != nil {
			var rpcErr rpc.Error
			if errors.As(err, &rpcErr) {
				return retry.Permanent(err)
			}
			return err
		}
		out = res
		return nil
	})
	return out, err
}

// WaitReceipt polls until the transaction is mined or ctx is done.
func (c *Client) WaitReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	ticker := time.NewTicker(c.poll)
	defer ticker.Stop()

	for {
		receipt, err := c.backend.TransactionReceipt(ctx, hash)
		if err == nil {
			return receipt, nil
		}
		if !errors.Is(err, geth.NotFound) {
			c.log.WithError(err).WithField("tx", hash.Hex()).Debug("receipt lookup failed")
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *Client) Decimals(ctx context.Context, token common.Address) (uint8, error) {
	out, err := c.callERC20(ctx, token, "decimals")
	if err != nil {
		return 0, err
	}
	dec, ok := out[0].(uint8)
	if !ok {
		return 0, fmt.Errorf("decimals: unexpected type %T", out[0])
	}
	return dec, nil
}

func (c *Client) BalanceOf(ctx context.Context, token, owner common.Address) (*big.Int, error) {
	return c.callUint(ctx, token, "balanceOf", owner)
}

func (c *Client) Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error) {
	return c.callUint(ctx, token, "allowance", owner, spender)
}

// Approve sends approve(spender, amount) from the wallet.
func (c *Client) Approve(ctx context.Context, token, spender common.Address, amount *big.Int) (common.Hash, error) {
	data, err := c.erc20ABI.Pack("approve", spender, amount)
	if err != nil {
		return common.Hash{}, fmt.Errorf("pack approve: %w", err)
	}
	return c.SendTx(ctx, token, nil, data)
}

func (c *Client) callUint(ctx context.Context, token common.Address, method string, args ...any) (*big.Int, error) {
	out, err := c.callERC20(ctx, token, method, args...)
	if err != nil {
		return nil, err
	}
	v, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("%s: unexpected type %T", method, out[0])
	}
	return v, nil
}

func (c *Client) callERC20(ctx context.Context, token common.Address, method string, args ...any) ([]any, error) {
	data, err := c.erc20ABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	raw, err := c.CallContract(ctx, token, data)
	if err != nil {
		return nil, fmt.Errorf("%s call: %w", method, err)
	}
	out, err := c.erc20ABI.Unpack(method, raw)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s: empty result", method)
	}
	return out, nil
}
