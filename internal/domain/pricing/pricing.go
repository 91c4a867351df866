// Package pricing は価格計算（割引後価格・明細小計）をまとめる。
// 金額は常に decimal で扱い、導出のたびに小数2桁へ丸める。
package pricing

import "github.com/shopspring/decimal"

// 金額の小数桁
const Scale int32 = 2

var (
	hundred = decimal.NewFromInt(100)
)

// 割引後価格 = price - price*discount/100（2桁で四捨五入）
func SpecialPrice(price, discount decimal.Decimal) decimal.Decimal {
	off := price.Mul(discount).Div(hundred)
	return price.Sub(off).Round(Scale)
}

// 明細小計 = unit * qty
func LineTotal(unit decimal.Decimal, qty int64) decimal.Decimal {
	return unit.Mul(decimal.NewFromInt(qty)).Round(Scale)
}

// 割引率は0〜100
func ValidDiscount(d decimal.Decimal) bool {
	return !d.IsNegative() && d.LessThanOrEqual(hundred)
}

// 価格は0以上
func ValidPrice(p decimal.Decimal) bool {
	return !p.IsNegative()
}
