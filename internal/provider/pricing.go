package provider

import (
	"sort"
	"strings"

	"rea/internal/domain"
)

// Price is the USD cost per million tokens.
type Price struct {
	Input  float64
	Output float64
}

// prices keyed by model-name prefix; the longest matching prefix wins so
// "gpt-4o-mini-2024-07-18" resolves to gpt-4o-mini, not gpt-4o.
var prices = map[string]Price{
	"gpt-4o":            {Input: 2.50, Output: 10.00},
	"gpt-4o-mini":       {Input: 0.15, Output: 0.60},
	"gpt-4.1":           {Input: 2.00, Output: 8.00},
	"gpt-4.1-mini":      {Input: 0.40, Output: 1.60},
	"gpt-4-turbo":       {Input: 10.00, Output: 30.00},
	"gpt-4":             {Input: 30.00, Output: 60.00},
	"gpt-3.5-turbo":     {Input: 0.50, Output: 1.50},
	"o3-mini":           {Input: 1.10, Output: 4.40},
	"claude-sonnet-4":   {Input: 3.00, Output: 15.00},
	"claude-opus-4":     {Input: 15.00, Output: 75.00},
	"claude-3-5-haiku":  {Input: 0.80, Output: 4.00},
	"claude-3-5-sonnet": {Input: 3.00, Output: 15.00},
}

var pricePrefixes = func() []string {
	keys := make([]string, 0, len(prices))
	for k := range prices {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return len(keys[i]) > len(keys[j]) })
	return keys
}()

// PriceFor returns the price of model and whether it is known.
func PriceFor(model string) (Price, bool) {
	model = strings.ToLower(model)
	for _, prefix := range pricePrefixes {
		if strings.HasPrefix(model, prefix) {
			return prices[prefix], true
		}
	}
	return Price{}, false
}

// Cost returns the USD cost of usage on model. Unknown models cost 0.
func Cost(model string, u domain.Usage) float64 {
	p, ok := PriceFor(model)
	if !ok {
		return 0
	}
	return (float64(u.PromptTokens)*p.Input + float64(u.CompletionTokens)*p.Output) / 1_000_000
}
