package domain

// AssetKind discriminates the Asset tagged union (spec.md §3: "Assets are a
// tagged union {Base, Futures(...), OptionContract(...)}").
type AssetKind int8

const (
	AssetBase AssetKind = iota
	AssetFutures
	AssetOption
)

func (k AssetKind) String() string {
	switch k {
	case AssetBase:
		return "BASE"
	case AssetFutures:
		return "FUTURES"
	case AssetOption:
		return "OPTION"
	default:
		return "UNKNOWN"
	}
}

// OptionKind discriminates European option variants.
type OptionKind int8

const (
	EuroPut OptionKind = iota
	EuroCall
)

func (k OptionKind) String() string {
	if k == EuroCall {
		return "EURO_CALL"
	}
	return "EURO_PUT"
}

// Asset is a discriminated struct standing in for the source's tagged union
// over {Base, Futures, OptionContract}. Only the fields relevant to Kind are
// populated; this mirrors how the teacher renders its own enums (domain.Side,
// domain.OrderType) as a discriminant plus behavior, generalized here to a
// discriminant plus payload since the variants carry different data.
type Asset struct {
	Kind AssetKind

	Symbol Symbol // all kinds

	// Futures and OptionContract only.
	UnderlyingSymbol Symbol
	SettlementSymbol Symbol
	Maturity         DateTime
	Strike           Price

	// OptionContract only.
	OptionKind OptionKind
}

// NewBaseAsset constructs a Base asset.
func NewBaseAsset(symbol Symbol) Asset {
	return Asset{Kind: AssetBase, Symbol: symbol}
}

// NewFuturesAsset constructs a Futures asset.
func NewFuturesAsset(symbol, underlying, settlement Symbol, maturity DateTime, strike Price) Asset {
	return Asset{
		Kind:             AssetFutures,
		Symbol:           symbol,
		UnderlyingSymbol: underlying,
		SettlementSymbol: settlement,
		Maturity:         maturity,
		Strike:           strike,
	}
}

// NewOptionAsset constructs an OptionContract asset.
func NewOptionAsset(symbol, underlying, settlement Symbol, maturity DateTime, strike Price, kind OptionKind) Asset {
	return Asset{
		Kind:             AssetOption,
		Symbol:           symbol,
		UnderlyingSymbol: underlying,
		SettlementSymbol: settlement,
		Maturity:         maturity,
		Strike:           strike,
		OptionKind:       kind,
	}
}

// Settlement is the "settlement determinant" of a TradedPair: how long after
// a trade settlement occurs. Grounded on original_source's GetSettlementLag
// trait (settlement/concrete.rs), reduced to the one property the core cares
// about — a fixed lag — since the core does not model settlement itself
// (spec.md Non-goals: "tax/PnL accounting").
type Settlement struct {
	LagNs int64
}

// TradedPair is the composite key identifying an instrument on an exchange:
// quoted asset, settlement asset, and settlement determinant (spec.md §3).
// Equality is by all three fields, which Go structs give for free as long as
// every field is itself comparable — true here since Asset has no slice/map
// fields.
type TradedPair struct {
	QuotedAsset     Asset
	SettlementAsset Asset
	Determinant     Settlement
}

// NewSpotPair is a convenience constructor for the common case: a base asset
// quoted and settled in itself, with no settlement lag.
func NewSpotPair(symbol Symbol) TradedPair {
	asset := NewBaseAsset(symbol)
	return TradedPair{QuotedAsset: asset, SettlementAsset: asset}
}
