package core

// SourceType identifies which upstream feed produced a token.
type SourceType string

const (
	SourcePrimary SourceType = "primary"
	SourceSignal  SourceType = "signal"
)

// Token is an immutable snapshot of a newly listed token as produced by a
// source client. Address is the dedup key; tokens without an address are
// never recorded as matches.
type Token struct {
	Address          string     `json:"address"`
	Name             string     `json:"name"`
	Symbol           string     `json:"symbol"`
	Deployer         string     `json:"deployer,omitempty"`
	Creator          string     `json:"creator,omitempty"`
	Website          string     `json:"website,omitempty"`
	Twitter          string     `json:"twitter,omitempty"`
	TwitterUsername  string     `json:"twitter_username,omitempty"`
	TwitterFollowers int        `json:"twitter_followers,omitempty"`
	TwitterVerified  bool       `json:"twitter_verified,omitempty"`
	Source           SourceType `json:"source"`
	MarketCap        float64    `json:"market_cap,omitempty"`
	Price            float64    `json:"price,omitempty"`
	Volume           float64    `json:"volume,omitempty"`
	CreatedAt        string     `json:"created_at,omitempty"`
}

// DisplaySymbol returns the symbol, or a placeholder when the feed omitted it.
func (t Token) DisplaySymbol() string {
	if t.Symbol == "" {
		return "Unknown"
	}
	return t.Symbol
}

// DisplayName returns the name, or a placeholder when the feed omitted it.
func (t Token) DisplayName() string {
	if t.Name == "" {
		return "Unknown"
	}
	return t.Name
}
