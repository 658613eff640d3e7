package chain

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// weiDecimals 最小单位与 ETH 之间的十进制位数
const weiDecimals = 18

// ToSmallestUnit 将十进制金额字符串精确转换为 wei
func ToSmallestUnit(amount string) (*big.Int, error) {
	s := strings.TrimSpace(amount)
	if s == "" {
		return nil, errors.New("amount is empty")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", amount, err)
	}
	return DecimalToSmallestUnit(d)
}

// DecimalToSmallestUnit 将金额转换为 wei，小数位超过 18 位时报错
func DecimalToSmallestUnit(d decimal.Decimal) (*big.Int, error) {
	if d.IsNegative() {
		return nil, fmt.Errorf("amount must not be negative: %s", d.String())
	}
	shifted := d.Shift(weiDecimals)
	if !shifted.IsInteger() {
		return nil, fmt.Errorf("amount %s has more than %d fractional digits", d.String(), weiDecimals)
	}
	return shifted.BigInt(), nil
}

// FromSmallestUnit wei 转为十进制字符串，不带多余的零
func FromSmallestUnit(wei *big.Int) string {
	if wei == nil {
		return "0"
	}
	return decimal.NewFromBigInt(wei, -weiDecimals).String()
}

// UnixSeconds 合约使用的 UTC 秒级时间戳
func UnixSeconds(t time.Time) *big.Int {
	return big.NewInt(t.UTC().Unix())
}
