package pricing

import "fmt"

const weeklyPassTiers = 10

// RegularCodes is the positional order used by "/setprice normal".
var RegularCodes = []string{
	"11", "22", "33", "56", "86", "112", "172", "257", "343", "429", "514", "600",
	"706", "878", "963", "1049", "1135", "1412", "2195", "3688", "5532", "9288", "12976",
}

// DoublePassCodes is the positional order used by "/setprice 2x".
var DoublePassCodes = []string{"55", "165", "275", "565"}

// defaultPrices are the built-in MMK prices.
var defaultPrices = map[string]int64{
	"11":    950,
	"22":    1900,
	"33":    2850,
	"56":    4200,
	"86":    5100,
	"112":   8200,
	"172":   10200,
	"257":   15300,
	"343":   20400,
	"429":   25500,
	"514":   30600,
	"600":   35700,
	"706":   40800,
	"878":   51000,
	"963":   56100,
	"1049":  61200,
	"1135":  66300,
	"1412":  81600,
	"2195":  122400,
	"3688":  204000,
	"5532":  306000,
	"9288":  510000,
	"12976": 714000,

	"55":  3500,
	"165": 10000,
	"275": 16000,
	"565": 33000,
}

// Groups maps a batch name to its positional codes.
var Groups = map[string][]string{
	"normal": RegularCodes,
	"2x":     DoublePassCodes,
}

func WeeklyPassCode(tier int) string {
	return fmt.Sprintf("wp%d", tier)
}

func weeklyPassCodes() []string {
	codes := make([]string, 0, weeklyPassTiers)
	for i := 1; i <= weeklyPassTiers; i++ {
		codes = append(codes, WeeklyPassCode(i))
	}
	return codes
}

// Entry is one priced product.
type Entry struct {
	Code  string
	Price int64
}

// Section is a titled group of entries for the price list.
type Section struct {
	Title   string
	Entries []Entry
}
