// Package ordersvc holds the order lifecycle: booked -> taken -> returned,
// or booked -> cancelled when a reservation is never picked up. Every
// transition that touches a book's quantity is paired with the order update
// in a single repository transaction.
package ordersvc

import (
	"context"
	"errors"
	"time"

	"libraryrental/model"
	orderrepo "libraryrental/repository/order"
)

// errors used by controllers

type ErrCode string

const (
	ErrBookNotFound    ErrCode = "BOOK_NOT_FOUND"
	ErrNoStock         ErrCode = "NO_STOCK"
	ErrOrderNotFound   ErrCode = "ORDER_NOT_FOUND"
	ErrAlreadyTaken    ErrCode = "ALREADY_TAKEN"
	ErrNotTaken        ErrCode = "NOT_TAKEN"
	ErrAlreadyReturned ErrCode = "ALREADY_RETURNED"
	ErrNotReturned     ErrCode = "NOT_RETURNED"
	ErrBadRating       ErrCode = "BAD_RATING"
)

type codedError struct{ code ErrCode }

func (e codedError) Error() string { return string(e.code) }
func (e codedError) Code() ErrCode { return e.code }
func makeErr(c ErrCode) error      { return codedError{code: c} }

// Code extracts error code
func Code(err error) ErrCode {
	var ce interface{ Code() ErrCode }
	if errors.As(err, &ce) {
		return ce.Code()
	}
	return ""
}

type Repo interface {
	Reserve(ctx context.Context, userID, bookID int64) (*model.Order, error)
	Get(ctx context.Context, orderID int64) (*model.Order, error)
	GetOwned(ctx context.Context, orderID, userID int64) (*model.Order, error)
	List(ctx context.Context) ([]model.Order, error)
	MarkTaken(ctx context.Context, orderID int64) (bool, error)
	MarkReturned(ctx context.Context, orderID int64) (bool, error)
	SetRating(ctx context.Context, orderID, userID int64, rating int) (bool, error)
	ListExpiredBooked(ctx context.Context, cutoff time.Time) ([]int64, error)
	CancelBooked(ctx context.Context, orderID int64, cutoff time.Time) (bool, error)
}

type Service interface {
	// Reserve books one copy for the user (status booked, quantity - 1).
	Reserve(ctx context.Context, userID, bookID int64) (*model.Order, error)

	// Accept marks a booked order picked up. Not idempotent: a second call
	// fails with ErrAlreadyTaken.
	Accept(ctx context.Context, orderID int64) (*model.Order, error)

	// Return marks a taken order returned and restores the copy.
	Return(ctx context.Context, orderID int64) (*model.Order, error)

	// Rate attaches a 0..5 rating to the caller's returned order.
	Rate(ctx context.Context, orderID, userID int64, rating int) error

	// List returns every order (staff view).
	List(ctx context.Context) ([]model.Order, error)
}

// ----- Service implementation -----

type service struct {
	r Repo
}

func New(r Repo) Service { return &service{r: r} }

func (s *service) Reserve(ctx context.Context, userID, bookID int64) (*model.Order, error) {
	o, err := s.r.Reserve(ctx, userID, bookID)
	if err != nil {
		switch {
		case errors.Is(err, orderrepo.ErrBookNotFound):
			return nil, makeErr(ErrBookNotFound)
		case errors.Is(err, orderrepo.ErrNoStock):
			return nil, makeErr(ErrNoStock)
		}
		return nil, err
	}
	return o, nil
}

func (s *service) Accept(ctx context.Context, orderID int64) (*model.Order, error) {
	o, err := s.r.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, makeErr(ErrOrderNotFound)
	}
	if o.TakenAt != nil {
		return nil, makeErr(ErrAlreadyTaken)
	}

	ok, err := s.r.MarkTaken(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !ok {
		// Lost the race, or the sweeper cancelled it first.
		return nil, makeErr(ErrAlreadyTaken)
	}
	return s.r.Get(ctx, orderID)
}

func (s *service) Return(ctx context.Context, orderID int64) (*model.Order, error) {
	o, err := s.r.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, makeErr(ErrOrderNotFound)
	}
	if o.TakenAt == nil {
		return nil, makeErr(ErrNotTaken)
	}
	if o.ReturnedAt != nil {
		return nil, makeErr(ErrAlreadyReturned)
	}

	ok, err := s.r.MarkReturned(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, makeErr(ErrAlreadyReturned)
	}
	return s.r.Get(ctx, orderID)
}

func (s *service) Rate(ctx context.Context, orderID, userID int64, rating int) error {
	if rating < 0 || rating > 5 {
		return makeErr(ErrBadRating)
	}

	// Ownership filter: an order that exists but belongs to someone else
	// looks exactly like a missing one.
	o, err := s.r.GetOwned(ctx, orderID, userID)
	if err != nil {
		return err
	}
	if o == nil {
		return makeErr(ErrOrderNotFound)
	}
	if o.ReturnedAt == nil {
		return makeErr(ErrNotReturned)
	}

	ok, err := s.r.SetRating(ctx, orderID, userID, rating)
	if err != nil {
		return err
	}
	if !ok {
		return makeErr(ErrNotReturned)
	}
	return nil
}

func (s *service) List(ctx context.Context) ([]model.Order, error) {
	return s.r.List(ctx)
}
