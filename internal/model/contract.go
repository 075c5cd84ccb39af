package model

import "strings"

// ContractSpec is what a subscriber asks the provider to resolve.
type ContractSpec struct {
	ConID    int64  `json:"conId" yaml:"conId"`
	Symbol   string `json:"symbol" yaml:"symbol"`
	SecType  string `json:"secType" yaml:"secType"`
	Exchange string `json:"exchange" yaml:"exchange"`
	Currency string `json:"currency" yaml:"currency"`
}

// Empty reports whether the spec names no instrument at all.
func (s ContractSpec) Empty() bool {
	return s.ConID == 0 && strings.TrimSpace(s.Symbol) == ""
}

func (s ContractSpec) String() string {
	var sb strings.Builder
	sb.WriteString(s.Symbol)
	if s.SecType != "" {
		sb.WriteByte('/')
		sb.WriteString(s.SecType)
	}
	if s.Exchange != "" {
		sb.WriteByte('@')
		sb.WriteString(s.Exchange)
	}
	return sb.String()
}

// Contract is the resolved metadata of a tradable instrument.
type Contract struct {
	ConID           int64   `json:"conId"`
	Symbol          string  `json:"symbol"`
	SecType         string  `json:"secType"`
	Exchange        string  `json:"exchange"`
	PrimaryExchange string  `json:"primaryExchange"`
	Currency        string  `json:"currency"`
	LocalSymbol     string  `json:"localSymbol"`
	TradingClass    string  `json:"tradingClass"`
	MinTick         float64 `json:"minTick"`
	Multiplier      string  `json:"multiplier"`
	LongName        string  `json:"longName"`
}

func (c Contract) String() string {
	if c.LocalSymbol != "" {
		return c.LocalSymbol + "@" + c.Exchange
	}
	return c.Symbol + "@" + c.Exchange
}
