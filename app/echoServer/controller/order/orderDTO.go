package order

type ReserveReq struct {
	BookID int64 `json:"book_id" validate:"required,gt=0"`
}

type RateReq struct {
	Rating *int `json:"rating" validate:"required"`
}
