package vault

import "github.com/GoPolymarket/polymarket-arb/pkg/chain"

const vaultABIJSON = `[
{"type":"function","name":"openPosition","stateMutability":"nonpayable","inputs":[
  {"name":"adapterA","type":"address"},{"name":"adapterB","type":"address"},
  {"name":"marketIdA","type":"bytes32"},{"name":"marketIdB","type":"bytes32"},
  {"name":"buyYesOnA","type":"bool"},
  {"name":"amountA","type":"uint256"},{"name":"amountB","type":"uint256"},
  {"name":"minSharesA","type":"uint256"},{"name":"minSharesB","type":"uint256"}],
  "outputs":[{"name":"positionId","type":"uint256"}]},
{"type":"function","name":"closePosition","stateMutability":"nonpayable","inputs":[
  {"name":"positionId","type":"uint256"},{"name":"minReturn","type":"uint256"}],
  "outputs":[{"name":"proceeds","type":"uint256"}]},
{"type":"function","name":"getVaultBalance","stateMutability":"view","inputs":[],
  "outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"getAllPositions","stateMutability":"view","inputs":[],
  "outputs":[{"name":"","type":"tuple[]","components":[
    {"name":"adapterA","type":"address"},{"name":"adapterB","type":"address"},
    {"name":"marketIdA","type":"bytes32"},{"name":"marketIdB","type":"bytes32"},
    {"name":"buyYesOnA","type":"bool"},
    {"name":"sharesA","type":"uint256"},{"name":"sharesB","type":"uint256"},
    {"name":"costA","type":"uint256"},{"name":"costB","type":"uint256"},
    {"name":"openedAt","type":"uint256"},{"name":"closed","type":"bool"}]}]},
{"type":"event","name":"PositionOpened","anonymous":false,"inputs":[
  {"name":"positionId","type":"uint256","indexed":true},
  {"name":"adapterA","type":"address","indexed":false},{"name":"adapterB","type":"address","indexed":false},
  {"name":"amountA","type":"uint256","indexed":false},{"name":"amountB","type":"uint256","indexed":false}]},
{"type":"event","name":"PositionClosed","anonymous":false,"inputs":[
  {"name":"positionId","type":"uint256","indexed":true},
  {"name":"proceeds","type":"uint256","indexed":false}]}
]`

const adapterABIJSON = `[
{"type":"function","name":"isMarketResolved","stateMutability":"view","inputs":[{"name":"marketId","type":"bytes32"}],"outputs":[{"name":"","type":"bool"}]}
]`

var (
	// ABI is the arbitrage vault interface.
	ABI = chain.MustParseABI(vaultABIJSON)
	// AdapterABI is the per-venue adapter contract the vault trades through.
	AdapterABI = chain.MustParseABI(adapterABIJSON)
)
