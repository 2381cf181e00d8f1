// Package ctf reads the Conditional Token Framework contract: condition and
// position ids, and whether a condition has reported payouts.
package ctf

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/GoPolymarket/polymarket-arb/pkg/chain"
	"github.com/GoPolymarket/polymarket-arb/pkg/settlement"
)

const conditionalTokensABIJSON = `[
{"type":"function","name":"payoutDenominator","stateMutability":"view","inputs":[{"name":"conditionId","type":"bytes32"}],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"getCollectionId","stateMutability":"view","inputs":[{"name":"parentCollectionId","type":"bytes32"},{"name":"conditionId","type":"bytes32"},{"name":"indexSet","type":"uint256"}],"outputs":[{"name":"","type":"bytes32"}]},
{"type":"function","name":"getPositionId","stateMutability":"pure","inputs":[{"name":"collateralToken","type":"address"},{"name":"collectionId","type":"bytes32"}],"outputs":[{"name":"","type":"uint256"}]}
]`

// ABI is the subset of the ConditionalTokens interface used here.
var ABI = chain.MustParseABI(conditionalTokensABIJSON)

// Binary outcome index sets.
var (
	IndexSetYes = big.NewInt(1)
	IndexSetNo  = big.NewInt(2)
)

// ConditionID is keccak256(oracle, questionID, outcomeSlotCount).
func ConditionID(oracle common.Address, questionID common.Hash, outcomeSlots uint64) common.Hash {
	slots := common.LeftPadBytes(new(big.Int).SetUint64(outcomeSlots).Bytes(), 32)
	return crypto.Keccak256Hash(oracle.Bytes(), questionID.Bytes(), slots)
}

// Client reads one ConditionalTokens deployment.
type Client struct {
	address common.Address
	reader  chain.Reader
}

func NewClient(address common.Address, reader chain.Reader) *Client {
	return &Client{address: address, reader: reader}
}

var _ settlement.ResolutionChecker = (*Client)(nil)

// IsResolved reports whether payouts were reported for the condition. The
// adapter argument is unused: marketID is the condition id itself.
func (c *Client) IsResolved(ctx context.Context, _ common.Address, conditionID common.Hash) (bool, error) {
	out, err := c.reader.ReadContract(ctx, c.address, ABI, "payoutDenominator", [32]byte(conditionID))
	if err != nil {
		return false, err
	}
	den, err := chain.Uint256(out, 0)
	if err != nil {
		return false, err
	}
	return den.Sign() > 0, nil
}

// CollectionID asks the contract for the collection of indexSet under condition.
func (c *Client) CollectionID(ctx context.Context, parent, conditionID common.Hash, indexSet *big.Int) (common.Hash, error) {
	out, err := c.reader.ReadContract(ctx, c.address, ABI, "getCollectionId", [32]byte(parent), [32]byte(conditionID), indexSet)
	if err != nil {
		return common.Hash{}, err
	}
	if len(out) == 0 {
		return common.Hash{}, fmt.Errorf("getCollectionId: empty output")
	}
	id, ok := out[0].([32]byte)
	if !ok {
		return common.Hash{}, fmt.Errorf("getCollectionId: output is %T", out[0])
	}
	return common.Hash(id), nil
}

// PositionID is the ERC-1155 token id of a collection backed by collateral.
func (c *Client) PositionID(ctx context.Context, collateral common.Address, collectionID common.Hash) (*big.Int, error) {
	out, err := c.reader.ReadContract(ctx, c.address, ABI, "getPositionId", collateral, [32]byte(collectionID))
	if err != nil {
		return nil, err
	}
	return chain.Uint256(out, 0)
}

// OutcomeTokenIDs returns the YES and NO token ids of a binary condition.
func (c *Client) OutcomeTokenIDs(ctx context.Context, collateral common.Address, conditionID common.Hash) (yes, no *big.Int, err error) {
	ids := make([]*big.Int, 0, 2)
	for _, set := range []*big.Int{IndexSetYes, IndexSetNo} {
		collection, err := c.CollectionID(ctx, common.Hash{}, conditionID, set)
		if err != nil {
			return nil, nil, fmt.Errorf("collection for index set %s: %w", set, err)
		}
		id, err := c.PositionID(ctx, collateral, collection)
		if err != nil {
			return nil, nil, fmt.Errorf("position for index set %s: %w", set, err)
		}
		ids = append(ids, id)
	}
	return ids[0], ids[1], nil
}
