package registry

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/paystream-hq/paystreamer/pkg/logger"
)

// registryABI is the ABI of the IntentRegistry contract.
const registryABI = `[
	{
		"inputs": [
			{"internalType": "address", "name": "_token", "type": "address"},
			{"internalType": "uint256", "name": "_amount", "type": "uint256"},
			{"internalType": "address", "name": "_recipient", "type": "address"},
			{"internalType": "uint256", "name": "_deadline", "type": "uint256"}
		],
		"name": "registerIntent",
		"outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [
			{"internalType": "uint256", "name": "_intentId", "type": "uint256"},
			{"internalType": "bytes32", "name": "_txHash", "type": "bytes32"}
		],
		"name": "executeIntent",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [{"internalType": "uint256", "name": "_intentId", "type": "uint256"}],
		"name": "cancelIntent",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [{"internalType": "uint256", "name": "_intentId", "type": "uint256"}],
		"name": "getIntent",
		"outputs": [
			{
				"components": [
					{"internalType": "uint256", "name": "id", "type": "uint256"},
					{"internalType": "address", "name": "owner", "type": "address"},
					{"internalType": "address", "name": "token", "type": "address"},
					{"internalType": "uint256", "name": "amount", "type": "uint256"},
					{"internalType": "address", "name": "recipient", "type": "address"},
					{"internalType": "uint8", "name": "status", "type": "uint8"},
					{"internalType": "uint256", "name": "createdAt", "type": "uint256"},
					{"internalType": "uint256", "name": "deadline", "type": "uint256"},
					{"internalType": "uint256", "name": "executedAt", "type": "uint256"},
					{"internalType": "bytes32", "name": "txHash", "type": "bytes32"}
				],
				"internalType": "struct IntentRegistry.Intent",
				"name": "",
				"type": "tuple"
			}
		],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [{"internalType": "address", "name": "_user", "type": "address"}],
		"name": "getUserIntents",
		"outputs": [{"internalType": "uint256[]", "name": "", "type": "uint256[]"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"anonymous": false,
		"inputs": [
			{"indexed": true, "internalType": "uint256", "name": "intentId", "type": "uint256"},
			{"indexed": true, "internalType": "address", "name": "owner", "type": "address"},
			{"indexed": false, "internalType": "uint256", "name": "deadline", "type": "uint256"}
		],
		"name": "IntentRegistered",
		"type": "event"
	}
]`

// gasLimitBufferPercent is added on top of the node's gas estimate.
const gasLimitBufferPercent = 20

// EVMClient is the go-ethereum backed registry client.
type EVMClient struct {
	client      *ethclient.Client
	contract    *bind.BoundContract
	contractABI abi.ABI
	auth        *bind.TransactOpts
	address     common.Address
	network     string
	callTimeout time.Duration
	logger      logger.Logger
}

var _ Client = (*EVMClient)(nil)

// NewEVMClient connects to the chain and binds the registry contract.
func NewEVMClient(rpcURL, contractAddress, privateKeyHex, network string, callTimeout time.Duration, log logger.Logger) (*EVMClient, error) {
	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to client: %v", err)
	}

	parsed, err := abi.JSON(strings.NewReader(registryABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse registry ABI: %v", err)
	}

	contract := bind.NewBoundContract(common.HexToAddress(contractAddress), parsed, client, client, client)

	auth, err := createAuthenticator(client, privateKeyHex)
	if err != nil {
		return nil, err
	}

	return &EVMClient{
		client:      client,
		contract:    contract,
		contractABI: parsed,
		auth:        auth,
		address:     common.HexToAddress(contractAddress),
		network:     network,
		callTimeout: callTimeout,
		logger:      log,
	}, nil
}

// SignerAddress returns the custodial signer account address.
func (c *EVMClient) SignerAddress() string {
	return c.auth.From.Hex()
}

// Register records a new intent on-chain and returns the registry identifier
// extracted from the IntentRegistered event.
func (c *EVMClient) Register(ctx context.Context, token, amount, recipient string, deadline time.Time) (uint64, error) {
	tokenAddr, err := normalizeAddress(token)
	if err != nil {
		return 0, err
	}
	recipientAddr, err := normalizeAddress(recipient)
	if err != nil {
		return 0, err
	}
	amountBase, ok := new(big.Int).SetString(amount, 10)
	if !ok {
		return 0, fmt.Errorf("invalid amount: %s", amount)
	}

	ctx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	tx, err := c.transact(ctx, "registerIntent", tokenAddr, amountBase, recipientAddr, big.NewInt(deadline.Unix()))
	if err != nil {
		return 0, fmt.Errorf("registerIntent transaction failed: %v", err)
	}

	receipt, err := bind.WaitMined(ctx, c.client, tx)
	if err != nil {
		return 0, fmt.Errorf("failed to wait for registerIntent receipt: %v", err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return 0, fmt.Errorf("registerIntent transaction reverted: %s", tx.Hash().Hex())
	}

	registryID, err := c.parseRegisteredID(receipt)
	if err != nil {
		return 0, err
	}

	c.logger.InfoWith(logger.Registry, "Intent registered on-chain with id %d (tx: %s)", registryID, tx.Hash().Hex())
	return registryID, nil
}

// MarkExecuted records the settlement reference for an executed intent.
func (c *EVMClient) MarkExecuted(ctx context.Context, registryID uint64, settlementRef string) error {
	ctx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	tx, err := c.transact(ctx, "executeIntent", new(big.Int).SetUint64(registryID), settlementRefHash(settlementRef))
	if err != nil {
		return fmt.Errorf("executeIntent transaction failed: %v", err)
	}
	if _, err := bind.WaitMined(ctx, c.client, tx); err != nil {
		return fmt.Errorf("failed to wait for executeIntent receipt: %v", err)
	}
	return nil
}

// Cancel withdraws a registered intent.
func (c *EVMClient) Cancel(ctx context.Context, registryID uint64) error {
	ctx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	tx, err := c.transact(ctx, "cancelIntent", new(big.Int).SetUint64(registryID))
	if err != nil {
		return fmt.Errorf("cancelIntent transaction failed: %v", err)
	}
	if _, err := bind.WaitMined(ctx, c.client, tx); err != nil {
		return fmt.Errorf("failed to wait for cancelIntent receipt: %v", err)
	}
	return nil
}

// Get fetches the on-chain record for a registry identifier.
func (c *EVMClient) Get(ctx context.Context, registryID uint64) (RegisteredIntent, error) {
	ctx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	var out []interface{}
	callOpts := &bind.CallOpts{Context: ctx}
	if err := c.contract.Call(callOpts, &out, "getIntent", new(big.Int).SetUint64(registryID)); err != nil {
		return RegisteredIntent{}, fmt.Errorf("getIntent call failed: %v", err)
	}
	if len(out) == 0 {
		return RegisteredIntent{}, fmt.Errorf("empty result from getIntent call")
	}

	record, ok := out[0].(struct {
		Id         *big.Int       `json:"id"`
		Owner      common.Address `json:"owner"`
		Token      common.Address `json:"token"`
		Amount     *big.Int       `json:"amount"`
		Recipient  common.Address `json:"recipient"`
		Status     uint8          `json:"status"`
		CreatedAt  *big.Int       `json:"createdAt"`
		Deadline   *big.Int       `json:"deadline"`
		ExecutedAt *big.Int       `json:"executedAt"`
		TxHash     [32]byte       `json:"txHash"`
	})
	if !ok {
		return RegisteredIntent{}, fmt.Errorf("unexpected result type from getIntent call")
	}

	return RegisteredIntent{
		ID:         record.Id.Uint64(),
		Owner:      record.Owner.Hex(),
		Token:      record.Token.Hex(),
		Amount:     record.Amount,
		Recipient:  record.Recipient.Hex(),
		Status:     record.Status,
		CreatedAt:  time.Unix(record.CreatedAt.Int64(), 0),
		Deadline:   time.Unix(record.Deadline.Int64(), 0),
		ExecutedAt: time.Unix(record.ExecutedAt.Int64(), 0),
		TxHash:     common.BytesToHash(record.TxHash[:]).Hex(),
	}, nil
}

// ListForOwner returns the registry identifiers recorded for an owner.
func (c *EVMClient) ListForOwner(ctx context.Context, owner string) ([]uint64, error) {
	ownerAddr, err := normalizeAddress(owner)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	var out []interface{}
	callOpts := &bind.CallOpts{Context: ctx}
	if err := c.contract.Call(callOpts, &out, "getUserIntents", ownerAddr); err != nil {
		return nil, fmt.Errorf("getUserIntents call failed: %v", err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("empty result from getUserIntents call")
	}

	ids, ok := out[0].([]*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected result type from getUserIntents call")
	}

	result := make([]uint64, 0, len(ids))
	for _, id := range ids {
		result = append(result, id.Uint64())
	}
	return result, nil
}

// WalletInfo reports the custodial signer account and its native balance.
func (c *EVMClient) WalletInfo(ctx context.Context) (WalletInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	balance, err := c.client.BalanceAt(ctx, c.auth.From, nil)
	if err != nil {
		return WalletInfo{}, fmt.Errorf("failed to get wallet balance: %v", err)
	}

	ether := new(big.Float).Quo(new(big.Float).SetInt(balance), big.NewFloat(1e18))
	return WalletInfo{
		Address:    c.auth.From.Hex(),
		Balance:    ether.Text('f', 6),
		BalanceWei: balance.String(),
		Network:    c.network,
	}, nil
}

// transact estimates gas with a buffer and submits the transaction.
func (c *EVMClient) transact(ctx context.Context, method string, params ...interface{}) (*types.Transaction, error) {
	input, err := c.contractABI.Pack(method, params...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s call: %v", method, err)
	}

	estimated, err := c.client.EstimateGas(ctx, ethereum.CallMsg{
		From: c.auth.From,
		To:   &c.address,
		Data: input,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to estimate gas for %s: %v", method, err)
	}

	opts := *c.auth
	opts.Context = ctx
	opts.GasLimit = estimated * (100 + gasLimitBufferPercent) / 100

	return c.contract.Transact(&opts, method, params...)
}

// parseRegisteredID extracts the intent id from the IntentRegistered event.
func (c *EVMClient) parseRegisteredID(receipt *types.Receipt) (uint64, error) {
	eventID := c.contractABI.Events["IntentRegistered"].ID
	for _, vLog := range receipt.Logs {
		if len(vLog.Topics) == 0 || vLog.Topics[0] != eventID {
			continue
		}
		// intentId is the first indexed topic
		if len(vLog.Topics) > 1 {
			return new(big.Int).SetBytes(vLog.Topics[1].Bytes()).Uint64(), nil
		}
	}
	return 0, fmt.Errorf("failed to get intent id from transaction logs")
}

// settlementRefHash packs a settlement reference into the bytes32 slot the
// contract expects. Hex-encoded transaction hashes pass through unchanged.
func settlementRefHash(ref string) [32]byte {
	if strings.HasPrefix(ref, "0x") && len(ref) == 66 {
		return common.HexToHash(ref)
	}
	return crypto.Keccak256Hash([]byte(ref))
}

// normalizeAddress validates and checksums a hex address.
func normalizeAddress(addr string) (common.Address, error) {
	if !common.IsHexAddress(addr) {
		return common.Address{}, fmt.Errorf("invalid address: %s", addr)
	}
	return common.HexToAddress(addr), nil
}

// createAuthenticator builds the keyed transactor for the signer account.
func createAuthenticator(client *ethclient.Client, privateKeyHex string) (*bind.TransactOpts, error) {
	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %v", err)
	}

	chainID, err := client.ChainID(context.Background())
	if err != nil {
		return nil, fmt.Errorf("failed to get chain ID: %v", err)
	}

	auth, err := bind.NewKeyedTransactorWithChainID(privateKey, chainID)
	if err != nil {
		return nil, fmt.Errorf("failed to create transactor: %v", err)
	}

	return auth, nil
}
