// model/book.go
package model

import "github.com/shopspring/decimal"

type Book struct {
	ID         int64           `json:"id"`
	Title      string          `json:"title"`
	Author     string          `json:"author"`
	Quantity   int64           `json:"quantity"`
	DailyPrice decimal.Decimal `json:"daily_price"`
}
