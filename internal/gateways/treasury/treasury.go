// Package treasury drives the on-chain settlement contract that escrows
// pledged funds per receipt, mints the receipt NFT on confirmation and
// releases or refunds the escrow.
package treasury

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

// Gateway is what the job processors call. The concrete client signs and
// submits contract transactions and waits for their receipts.
type Gateway interface {
	Pledge(ctx context.Context, p PledgeParams) (string, error)
	Confirm(ctx context.Context, receiptID string, amountCents int64) (*ConfirmResult, error)
	Withdraw(ctx context.Context, receiptID string) (string, error)
	Refund(ctx context.Context, receiptID string) (string, error)
}

// PledgeParams opens escrow for a receipt: the buyer pledges the receipt
// total toward the seller's liquidation address.
type PledgeParams struct {
	PayeeAddress   string
	PledgorAddress string
	ReceiptID      string
	AmountCents    int64
}

// ConfirmResult is a confirmed installment's transaction hash plus the
// receipt-NFT token id when the confirmation minted one.
type ConfirmResult struct {
	TxHash  string
	TokenID *big.Int
}

// PollConfig bounds transaction-receipt polling.
type PollConfig struct {
	Attempts int
	Interval time.Duration
}

func DefaultPollConfig() PollConfig {
	return PollConfig{Attempts: 5, Interval: 3 * time.Second}
}

// ErrReceiptNotFound means the transaction was submitted but its receipt
// never appeared within the polling budget.
var ErrReceiptNotFound = errors.New("treasury: transaction receipt not found")

// Client implements Gateway against a JSON-RPC node.
type Client struct {
	eth      *ethclient.Client
	chainID  *big.Int
	address  common.Address
	key      *ecdsa.PrivateKey
	from     common.Address
	poll     PollConfig
	decimals uint8
}

// Dial connects to the chain, loads the signing key and caches the
// contract's token decimals.
func Dial(ctx context.Context, rpcURL, contractAddress, privateKeyHex string, chainID int64, poll PollConfig) (*Client, error) {
	eth, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("treasury: dial %s: %w", rpcURL, err)
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("treasury: invalid wallet key: %w", err)
	}
	c := &Client{
		eth:     eth,
		chainID: big.NewInt(chainID),
		address: common.HexToAddress(contractAddress),
		key:     key,
		from:    crypto.PubkeyToAddress(key.PublicKey),
		poll:    poll,
	}
	decimals, err := c.readDecimals(ctx)
	if err != nil {
		return nil, err
	}
	c.decimals = decimals
	return c, nil
}

func (c *Client) readDecimals(ctx context.Context) (uint8, error) {
	out, err := c.call(ctx, "decimals")
	if err != nil {
		return 0, err
	}
	decimals, ok := out[0].(uint8)
	if !ok {
		return 0, fmt.Errorf("treasury: unexpected decimals type %T", out[0])
	}
	return decimals, nil
}

// NFTContract reads the receipt-NFT contract address bound to the treasury.
func (c *Client) NFTContract(ctx context.Context) (common.Address, error) {
	out, err := c.call(ctx, "nftContract")
	if err != nil {
		return common.Address{}, err
	}
	addr, ok := out[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("treasury: unexpected nftContract type %T", out[0])
	}
	return addr, nil
}

func (c *Client) Pledge(ctx context.Context, p PledgeParams) (string, error) {
	amount := UnitsFromCents(p.AmountCents, c.decimals)
	_, hash, err := c.transact(ctx, "pledge",
		common.HexToAddress(p.PayeeAddress),
		common.HexToAddress(p.PledgorAddress),
		p.ReceiptID,
		amount,
	)
	return hash, err
}

func (c *Client) Confirm(ctx context.Context, receiptID string, amountCents int64) (*ConfirmResult, error) {
	amount := UnitsFromCents(amountCents, c.decimals)
	receipt, hash, err := c.transact(ctx, "confirm", receiptID, amount)
	if err != nil {
		return nil, err
	}
	return &ConfirmResult{
		TxHash:  hash,
		TokenID: DecodeMintedTokenID(receipt.Logs),
	}, nil
}

func (c *Client) Withdraw(ctx context.Context, receiptID string) (string, error) {
	_, hash, err := c.transact(ctx, "withdraw", receiptID)
	return hash, err
}

func (c *Client) Refund(ctx context.Context, receiptID string) (string, error) {
	_, hash, err := c.transact(ctx, "refund", receiptID)
	return hash, err
}

func (c *Client) call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	data, err := treasuryABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("treasury: pack %s: %w", method, err)
	}
	result, err := c.eth.CallContract(ctx, ethereum.CallMsg{To: &c.address, Data: data}, nil)
	if err != nil {
		return nil, decodeRevert(err)
	}
	out, err := treasuryABI.Unpack(method, result)
	if err != nil {
		return nil, fmt.Errorf("treasury: unpack %s: %w", method, err)
	}
	return out, nil
}

// transact signs and submits a contract call, then waits for its receipt.
func (c *Client) transact(ctx context.Context, method string, args ...interface{}) (*types.Receipt, string, error) {
	data, err := treasuryABI.Pack(method, args...)
	if err != nil {
		return nil, "", fmt.Errorf("treasury: pack %s: %w", method, err)
	}
	nonce, err := c.eth.PendingNonceAt(ctx, c.from)
	if err != nil {
		return nil, "", fmt.Errorf("treasury: nonce: %w", err)
	}
	gas, err := c.eth.EstimateGas(ctx, ethereum.CallMsg{From: c.from, To: &c.address, Data: data})
	if err != nil {
		// Estimation executes the call, so deterministic reverts surface here.
		return nil, "", decodeRevert(err)
	}
	tipCap, err := c.eth.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("treasury: gas tip: %w", err)
	}
	head, err := c.eth.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, "", fmt.Errorf("treasury: chain head: %w", err)
	}
	feeCap := new(big.Int).Add(tipCap, new(big.Int).Mul(head.BaseFee, big.NewInt(2)))

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   c.chainID,
		Nonce:     nonce,
		GasTipCap: tipCap,
		GasFeeCap: feeCap,
		Gas:       gas,
		To:        &c.address,
		Value:     big.NewInt(0),
		Data:      data,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(c.chainID), c.key)
	if err != nil {
		return nil, "", fmt.Errorf("treasury: sign %s: %w", method, err)
	}
	if err := c.eth.SendTransaction(ctx, signed); err != nil {
		return nil, "", decodeRevert(err)
	}

	hash := signed.Hash()
	receipt, err := c.waitForReceipt(ctx, hash)
	if err != nil {
		return nil, "", err
	}
	return receipt, hash.Hex(), nil
}

func (c *Client) waitForReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	for attempt := 0; attempt < c.poll.Attempts; attempt++ {
		receipt, err := c.eth.TransactionReceipt(ctx, hash)
		if err == nil {
			return receipt, nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			return nil, fmt.Errorf("treasury: receipt for %s: %w", hash.Hex(), err)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.poll.Interval):
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrReceiptNotFound, hash.Hex())
}

// DecodeMintedTokenID scans transaction logs for the receipt-NFT Minted
// event and returns its token id, or nil when none was emitted.
func DecodeMintedTokenID(logs []*types.Log) *big.Int {
	for _, lg := range logs {
		if len(lg.Topics) == 0 || lg.Topics[0] != mintedEvent.ID {
			continue
		}
		out, err := mintABI.Unpack("Minted", lg.Data)
		if err != nil || len(out) == 0 {
			continue
		}
		if tokenID, ok := out[0].(*big.Int); ok {
			return tokenID
		}
	}
	return nil
}

// UnitsFromCents scales a cent amount to the token's smallest unit.
func UnitsFromCents(cents int64, decimals uint8) *big.Int {
	amount := big.NewInt(cents)
	if decimals >= 2 {
		scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals-2)), nil)
		return amount.Mul(amount, scale)
	}
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(2-decimals)), nil)
	return amount.Div(amount, scale)
}
