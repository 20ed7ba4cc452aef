package source

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"trading-buddy/internal/event"
)

const aggregatorABIJSON = `[{"inputs":[],"name":"latestRoundData","outputs":[{"internalType":"uint80","name":"roundId","type":"uint80"},{"internalType":"int256","name":"answer","type":"int256"},{"internalType":"uint256","name":"startedAt","type":"uint256"},{"internalType":"uint256","name":"updatedAt","type":"uint256"},{"internalType":"uint80","name":"answeredInRound","type":"uint80"}],"stateMutability":"view","type":"function"}]`

var aggregatorABI abi.ABI

func init() {
	parsed, err := abi.JSON(strings.NewReader(aggregatorABIJSON))
	if err != nil {
		panic("failed to parse aggregator ABI: " + err.Error())
	}
	aggregatorABI = parsed
}

// ChainOptions parameterise the on-chain price adapter.
type ChainOptions struct {
	RPCURL      string
	FeedAddress string // Chainlink-style aggregator contract
	Symbol      string // symbol the feed quotes
	Decimals    int32  // answer scale, 8 for most USD feeds
	Interval    time.Duration
	Timeout     time.Duration
}

// ChainPrices polls an on-chain price feed and translates rounds into price
// ticks. Transient RPC failures become skipped ticks with backoff.
type ChainPrices struct {
	opts      ChainOptions
	logger    zerolog.Logger
	client    *ethclient.Client
	clientMux sync.Mutex
}

// NewChainPrices builds the on-chain adapter.
func NewChainPrices(opts ChainOptions, logger zerolog.Logger) *ChainPrices {
	if opts.Interval <= 0 {
		opts.Interval = 15 * time.Second
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Decimals == 0 {
		opts.Decimals = 8
	}
	return &ChainPrices{opts: opts, logger: logger.With().Str("component", "chain_prices").Logger()}
}

func (c *ChainPrices) Name() string { return "chain_prices" }

// Run polls the feed until ctx ends. Fetch errors never terminate the loop.
func (c *ChainPrices) Run(ctx context.Context, sink Sink) error {
	if c.opts.RPCURL == "" || c.opts.FeedAddress == "" || c.opts.Symbol == "" {
		return errors.New("chain adapter requires rpc url, feed address, and symbol")
	}

	retry := newBackoff(c.opts.Interval, 5*time.Minute)
	for {
		price, err := c.fetchRound(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			wait := retry.next()
			c.logger.Warn().Err(err).Dur("backoff", wait).Msg("feed fetch failed, tick skipped")
			if err := sleep(ctx, wait); err != nil {
				return err
			}
			continue
		}
		retry.reset()

		tick := event.PriceTick{Symbol: c.opts.Symbol, Price: price, TS: time.Now().UTC()}
		if err := sink.Submit(ctx, tick); err != nil {
			return err
		}
		if err := sleep(ctx, c.opts.Interval); err != nil {
			return err
		}
	}
}

func (c *ChainPrices) fetchRound(ctx context.Context) (decimal.Decimal, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	client, err := c.getClient(ctx)
	if err != nil {
		return decimal.Decimal{}, err
	}

	payload, err := aggregatorABI.Pack("latestRoundData")
	if err != nil {
		return decimal.Decimal{}, err
	}

	addr := common.HexToAddress(c.opts.FeedAddress)
	res, err := client.CallContract(ctx, ethereum.CallMsg{To: &addr, Data: payload}, nil)
	if err != nil {
		return decimal.Decimal{}, err
	}

	outputs, err := aggregatorABI.Unpack("latestRoundData", res)
	if err != nil {
		return decimal.Decimal{}, err
	}
	if len(outputs) != 5 {
		return decimal.Decimal{}, errors.New("unexpected latestRoundData response")
	}

	answer, ok := outputs[1].(*big.Int)
	if !ok {
		return decimal.Decimal{}, errors.New("failed to decode latestRoundData answer")
	}
	if answer.Sign() <= 0 {
		return decimal.Decimal{}, errors.New("feed returned non-positive answer")
	}

	return decimal.NewFromBigInt(answer, -c.opts.Decimals), nil
}

func (c *ChainPrices) getClient(ctx context.Context) (*ethclient.Client, error) {
	c.clientMux.Lock()
	defer c.clientMux.Unlock()

	if c.client != nil {
		return c.client, nil
	}
	client, err := ethclient.DialContext(ctx, c.opts.RPCURL)
	if err != nil {
		return nil, err
	}
	c.client = client
	return client, nil
}

var _ Adapter = (*ChainPrices)(nil)
