package book

type BookReq struct {
	Title      string `json:"title" validate:"required"`
	Author     string `json:"author" validate:"required"`
	Quantity   int64  `json:"quantity" validate:"gte=0"`
	DailyPrice string `json:"daily_price" validate:"omitempty"`
}
