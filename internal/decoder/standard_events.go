package decoder

// standardEvents is the hard-coded table spec §4.4 requires: "A
// hard-coded table of standard events (ERC-20/721/1155,
// OwnershipTransferred, Pausable, AccessControl, Uniswap V2/V3/V4, plus
// platform-specific events)." Uniswap event shapes and the AccessControl/
// Pausable set are a supplemented detail (SPEC_FULL.md §10) filling in
// what spec §4.4 names without enumerating.
var standardEvents = buildStandardEvents()

func buildStandardEvents() []Descriptor {
	defs := []struct {
		name   string
		sig    string
		tag    string
		params []ParamSpec
	}{
		{
			name: "Transfer", sig: "Transfer(address,address,uint256)", tag: "ERC20/ERC721",
			params: []ParamSpec{
				{Name: "from", Type: "address", Indexed: true},
				{Name: "to", Type: "address", Indexed: true},
				{Name: "value", Type: "uint256", Indexed: true},
			},
		},
		{
			name: "Approval", sig: "Approval(address,address,uint256)", tag: "ERC20/ERC721",
			params: []ParamSpec{
				{Name: "owner", Type: "address", Indexed: true},
				{Name: "spender", Type: "address", Indexed: true},
				{Name: "value", Type: "uint256", Indexed: true},
			},
		},
		{
			name: "ApprovalForAll", sig: "ApprovalForAll(address,address,bool)", tag: "ERC721/ERC1155",
			params: []ParamSpec{
				{Name: "owner", Type: "address", Indexed: true},
				{Name: "operator", Type: "address", Indexed: true},
				{Name: "approved", Type: "bool", Indexed: false},
			},
		},
		{
			name: "TransferSingle", sig: "TransferSingle(address,address,address,uint256,uint256)", tag: "ERC1155",
			params: []ParamSpec{
				{Name: "operator", Type: "address", Indexed: true},
				{Name: "from", Type: "address", Indexed: true},
				{Name: "to", Type: "address", Indexed: true},
				{Name: "id", Type: "uint256", Indexed: false},
				{Name: "value", Type: "uint256", Indexed: false},
			},
		},
		{
			name: "TransferBatch", sig: "TransferBatch(address,address,address,uint256[],uint256[])", tag: "ERC1155",
			params: []ParamSpec{
				{Name: "operator", Type: "address", Indexed: true},
				{Name: "from", Type: "address", Indexed: true},
				{Name: "to", Type: "address", Indexed: true},
				{Name: "ids", Type: "uint256[]", Indexed: false},
				{Name: "values", Type: "uint256[]", Indexed: false},
			},
		},
		{
			name: "URI", sig: "URI(string,uint256)", tag: "ERC1155",
			params: []ParamSpec{
				{Name: "value", Type: "string", Indexed: false},
				{Name: "id", Type: "uint256", Indexed: true},
			},
		},
		{
			name: "OwnershipTransferred", sig: "OwnershipTransferred(address,address)", tag: "Ownable",
			params: []ParamSpec{
				{Name: "previousOwner", Type: "address", Indexed: true},
				{Name: "newOwner", Type: "address", Indexed: true},
			},
		},
		{
			name: "Paused", sig: "Paused(address)", tag: "Pausable",
			params: []ParamSpec{{Name: "account", Type: "address", Indexed: false}},
		},
		{
			name: "Unpaused", sig: "Unpaused(address)", tag: "Pausable",
			params: []ParamSpec{{Name: "account", Type: "address", Indexed: false}},
		},
		{
			name: "RoleGranted", sig: "RoleGranted(bytes32,address,address)", tag: "AccessControl",
			params: []ParamSpec{
				{Name: "role", Type: "bytes32", Indexed: true},
				{Name: "account", Type: "address", Indexed: true},
				{Name: "sender", Type: "address", Indexed: true},
			},
		},
		{
			name: "RoleRevoked", sig: "RoleRevoked(bytes32,address,address)", tag: "AccessControl",
			params: []ParamSpec{
				{Name: "role", Type: "bytes32", Indexed: true},
				{Name: "account", Type: "address", Indexed: true},
				{Name: "sender", Type: "address", Indexed: true},
			},
		},
		{
			name: "RoleAdminChanged", sig: "RoleAdminChanged(bytes32,bytes32,bytes32)", tag: "AccessControl",
			params: []ParamSpec{
				{Name: "role", Type: "bytes32", Indexed: true},
				{Name: "previousAdminRole", Type: "bytes32", Indexed: true},
				{Name: "newAdminRole", Type: "bytes32", Indexed: true},
			},
		},
		{
			name: "PairCreated", sig: "PairCreated(address,address,address,uint256)", tag: "UniswapV2",
			params: []ParamSpec{
				{Name: "token0", Type: "address", Indexed: true},
				{Name: "token1", Type: "address", Indexed: true},
				{Name: "pair", Type: "address", Indexed: false},
				{Name: "allPairsLength", Type: "uint256", Indexed: false},
			},
		},
		{
			name: "Swap", sig: "Swap(address,uint256,uint256,uint256,uint256,address)", tag: "UniswapV2",
			params: []ParamSpec{
				{Name: "sender", Type: "address", Indexed: true},
				{Name: "amount0In", Type: "uint256", Indexed: false},
				{Name: "amount1In", Type: "uint256", Indexed: false},
				{Name: "amount0Out", Type: "uint256", Indexed: false},
				{Name: "amount1Out", Type: "uint256", Indexed: false},
				{Name: "to", Type: "address", Indexed: true},
			},
		},
		{
			name: "Mint", sig: "Mint(address,uint256,uint256)", tag: "UniswapV2",
			params: []ParamSpec{
				{Name: "sender", Type: "address", Indexed: true},
				{Name: "amount0", Type: "uint256", Indexed: false},
				{Name: "amount1", Type: "uint256", Indexed: false},
			},
		},
		{
			name: "Burn", sig: "Burn(address,uint256,uint256,address)", tag: "UniswapV2",
			params: []ParamSpec{
				{Name: "sender", Type: "address", Indexed: true},
				{Name: "amount0", Type: "uint256", Indexed: false},
				{Name: "amount1", Type: "uint256", Indexed: false},
				{Name: "to", Type: "address", Indexed: true},
			},
		},
		{
			name: "Sync", sig: "Sync(uint112,uint112)", tag: "UniswapV2",
			params: []ParamSpec{
				{Name: "reserve0", Type: "uint112", Indexed: false},
				{Name: "reserve1", Type: "uint112", Indexed: false},
			},
		},
		{
			name: "Swap", sig: "Swap(address,address,int256,int256,uint160,uint128,int24)", tag: "UniswapV3",
			params: []ParamSpec{
				{Name: "sender", Type: "address", Indexed: true},
				{Name: "recipient", Type: "address", Indexed: true},
				{Name: "amount0", Type: "int256", Indexed: false},
				{Name: "amount1", Type: "int256", Indexed: false},
				{Name: "sqrtPriceX96", Type: "uint160", Indexed: false},
				{Name: "liquidity", Type: "uint128", Indexed: false},
				{Name: "tick", Type: "int24", Indexed: false},
			},
		},
		{
			name: "Mint", sig: "Mint(address,address,int24,int24,uint128,uint256,uint256)", tag: "UniswapV3",
			params: []ParamSpec{
				{Name: "sender", Type: "address", Indexed: false},
				{Name: "owner", Type: "address", Indexed: true},
				{Name: "tickLower", Type: "int24", Indexed: true},
				{Name: "tickUpper", Type: "int24", Indexed: true},
				{Name: "amount", Type: "uint128", Indexed: false},
				{Name: "amount0", Type: "uint256", Indexed: false},
				{Name: "amount1", Type: "uint256", Indexed: false},
			},
		},
		{
			name: "Burn", sig: "Burn(address,int24,int24,uint128,uint256,uint256)", tag: "UniswapV3",
			params: []ParamSpec{
				{Name: "owner", Type: "address", Indexed: true},
				{Name: "tickLower", Type: "int24", Indexed: true},
				{Name: "tickUpper", Type: "int24", Indexed: true},
				{Name: "amount", Type: "uint128", Indexed: false},
				{Name: "amount0", Type: "uint256", Indexed: false},
				{Name: "amount1", Type: "uint256", Indexed: false},
			},
		},
		{
			name: "Initialize", sig: "Initialize(uint160,int24)", tag: "UniswapV3",
			params: []ParamSpec{
				{Name: "sqrtPriceX96", Type: "uint160", Indexed: false},
				{Name: "tick", Type: "int24", Indexed: false},
			},
		},
		{
			name: "Swap", sig: "Swap(bytes32,address,int128,int128,uint160,uint128,int24,uint24)", tag: "UniswapV4",
			params: []ParamSpec{
				{Name: "id", Type: "bytes32", Indexed: true},
				{Name: "sender", Type: "address", Indexed: true},
				{Name: "amount0", Type: "int128", Indexed: false},
				{Name: "amount1", Type: "int128", Indexed: false},
				{Name: "sqrtPriceX96", Type: "uint160", Indexed: false},
				{Name: "liquidity", Type: "uint128", Indexed: false},
				{Name: "tick", Type: "int24", Indexed: false},
				{Name: "fee", Type: "uint24", Indexed: false},
			},
		},
		{
			name: "ModifyLiquidity", sig: "ModifyLiquidity(bytes32,address,int24,int24,int256,bytes32)", tag: "UniswapV4",
			params: []ParamSpec{
				{Name: "id", Type: "bytes32", Indexed: true},
				{Name: "sender", Type: "address", Indexed: true},
				{Name: "tickLower", Type: "int24", Indexed: false},
				{Name: "tickUpper", Type: "int24", Indexed: false},
				{Name: "liquidityDelta", Type: "int256", Indexed: false},
				{Name: "salt", Type: "bytes32", Indexed: false},
			},
		},
		{
			name: "Initialize", sig: "Initialize(bytes32,address,address,uint24,int24,address,uint160,int24)", tag: "UniswapV4",
			params: []ParamSpec{
				{Name: "id", Type: "bytes32", Indexed: true},
				{Name: "currency0", Type: "address", Indexed: true},
				{Name: "currency1", Type: "address", Indexed: true},
				{Name: "fee", Type: "uint24", Indexed: false},
				{Name: "tickSpacing", Type: "int24", Indexed: false},
				{Name: "hooks", Type: "address", Indexed: false},
				{Name: "sqrtPriceX96", Type: "uint160", Indexed: false},
				{Name: "tick", Type: "int24", Indexed: false},
			},
		},
	}

	out := make([]Descriptor, 0, len(defs))
	for _, d := range defs {
		out = append(out, Descriptor{
			Topic0:             topic0Of(d.sig),
			Name:               d.name,
			CanonicalSignature: d.sig,
			StandardTag:        d.tag,
			Params:             d.params,
		})
	}
	return out
}
