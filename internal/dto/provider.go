package dto

// Wire types of the market data REST API.

type ProviderQuoteResponse struct {
	Symbol          string  `json:"symbol"`
	Price           float64 `json:"price"`
	Change          float64 `json:"change"`
	Volume          int64   `json:"volume"`
	High            float64 `json:"high"`
	Low             float64 `json:"low"`
	InstrumentType  string  `json:"instrument_type"`
	Underlying      string  `json:"underlying"`
	UnderlyingPrice float64 `json:"underlying_price"`
	Timestamp       int64   `json:"timestamp"`
}

type ProviderContract struct {
	Symbol       string  `json:"symbol"`
	Type         string  `json:"type"`
	Strike       float64 `json:"strike"`
	Expiration   string  `json:"expiration"`
	Delta        float64 `json:"delta"`
	Volume       int64   `json:"volume"`
	OpenInterest int64   `json:"open_interest"`
	Bid          float64 `json:"bid"`
	Ask          float64 `json:"ask"`
}

type ProviderChainResponse struct {
	Underlying      string             `json:"underlying"`
	UnderlyingPrice float64            `json:"underlying_price"`
	Contracts       []ProviderContract `json:"contracts"`
}

type ProviderIndicatorsResponse struct {
	Symbol        string  `json:"symbol"`
	Price         float64 `json:"price"`
	RSI           float64 `json:"rsi"`
	MACD          float64 `json:"macd"`
	MACDSignal    float64 `json:"macd_signal"`
	MACDHistogram float64 `json:"macd_histogram"`
	SMA20         float64 `json:"sma20"`
	SMA50         float64 `json:"sma50"`
	SMA200        float64 `json:"sma200"`
	VolumeRatio   float64 `json:"volume_ratio"`
	Timestamp     int64   `json:"timestamp"`
}
