package model

// AssetClass groups assets by market.
type AssetClass string

const (
	ClassCrypto    AssetClass = "CRYPTO"
	ClassStock     AssetClass = "STOCK"
	ClassCommodity AssetClass = "COMMODITY"
)

// Asset is a monitored instrument.
// ID is the stable identifier rules refer to; Ticker is the vendor symbol.
type Asset struct {
	ID     string     `json:"id" yaml:"id"`
	Symbol string     `json:"symbol" yaml:"symbol"`
	Name   string     `json:"name" yaml:"name"`
	Class  AssetClass `json:"type" yaml:"class"`
	Ticker string     `json:"ticker" yaml:"ticker"`
}

// DefaultUniverse is the built-in watch list: Binance USDT pairs plus US equities.
func DefaultUniverse() []Asset {
	return []Asset{
		{ID: "bitcoin", Symbol: "BTC", Name: "Bitcoin", Class: ClassCrypto, Ticker: "BTCUSDT"},
		{ID: "ethereum", Symbol: "ETH", Name: "Ethereum", Class: ClassCrypto, Ticker: "ETHUSDT"},
		{ID: "binancecoin", Symbol: "BNB", Name: "BNB", Class: ClassCrypto, Ticker: "BNBUSDT"},
		{ID: "solana", Symbol: "SOL", Name: "Solana", Class: ClassCrypto, Ticker: "SOLUSDT"},
		{ID: "ripple", Symbol: "XRP", Name: "XRP", Class: ClassCrypto, Ticker: "XRPUSDT"},
		{ID: "dogecoin", Symbol: "DOGE", Name: "Dogecoin", Class: ClassCrypto, Ticker: "DOGEUSDT"},
		{ID: "cardano", Symbol: "ADA", Name: "Cardano", Class: ClassCrypto, Ticker: "ADAUSDT"},
		{ID: "avalanche-2", Symbol: "AVAX", Name: "Avalanche", Class: ClassCrypto, Ticker: "AVAXUSDT"},
		{ID: "shiba-inu", Symbol: "SHIB", Name: "Shiba Inu", Class: ClassCrypto, Ticker: "SHIBUSDT"},
		{ID: "polkadot", Symbol: "DOT", Name: "Polkadot", Class: ClassCrypto, Ticker: "DOTUSDT"},
		{ID: "chainlink", Symbol: "LINK", Name: "Chainlink", Class: ClassCrypto, Ticker: "LINKUSDT"},
		{ID: "tron", Symbol: "TRX", Name: "TRON", Class: ClassCrypto, Ticker: "TRXUSDT"},
		{ID: "matic-network", Symbol: "MATIC", Name: "Polygon", Class: ClassCrypto, Ticker: "MATICUSDT"},
		{ID: "litecoin", Symbol: "LTC", Name: "Litecoin", Class: ClassCrypto, Ticker: "LTCUSDT"},
		{ID: "near", Symbol: "NEAR", Name: "NEAR Protocol", Class: ClassCrypto, Ticker: "NEARUSDT"},
		{ID: "gold", Symbol: "PAXG", Name: "Gold (PAXG)", Class: ClassCommodity, Ticker: "PAXGUSDT"},
		{ID: "aapl", Symbol: "AAPL", Name: "Apple", Class: ClassStock, Ticker: "AAPL"},
		{ID: "msft", Symbol: "MSFT", Name: "Microsoft", Class: ClassStock, Ticker: "MSFT"},
		{ID: "googl", Symbol: "GOOGL", Name: "Alphabet", Class: ClassStock, Ticker: "GOOGL"},
		{ID: "amzn", Symbol: "AMZN", Name: "Amazon", Class: ClassStock, Ticker: "AMZN"},
		{ID: "tsla", Symbol: "TSLA", Name: "Tesla", Class: ClassStock, Ticker: "TSLA"},
		{ID: "meta", Symbol: "META", Name: "Meta", Class: ClassStock, Ticker: "META"},
		{ID: "nvda", Symbol: "NVDA", Name: "NVIDIA", Class: ClassStock, Ticker: "NVDA"},
	}
}

// FindAsset returns the asset with the given id.
func FindAsset(universe []Asset, id string) (Asset, bool) {
	for _, a := range universe {
		if a.ID == id {
			return a, true
		}
	}
	return Asset{}, false
}
