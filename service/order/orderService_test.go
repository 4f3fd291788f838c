package ordersvc_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"libraryrental/model"
	orderrepo "libraryrental/repository/order"
	ordersvc "libraryrental/service/order"
)

type repoMock struct {
	reserveFn      func(ctx context.Context, userID, bookID int64) (*model.Order, error)
	getFn          func(ctx context.Context, orderID int64) (*model.Order, error)
	getOwnedFn     func(ctx context.Context, orderID, userID int64) (*model.Order, error)
	listFn         func(ctx context.Context) ([]model.Order, error)
	markTakenFn    func(ctx context.Context, orderID int64) (bool, error)
	markReturnedFn func(ctx context.Context, orderID int64) (bool, error)
	setRatingFn    func(ctx context.Context, orderID, userID int64, rating int) (bool, error)
	listExpiredFn  func(ctx context.Context, cutoff time.Time) ([]int64, error)
	cancelFn       func(ctx context.Context, orderID int64, cutoff time.Time) (bool, error)
}

var _ ordersvc.Repo = (*repoMock)(nil)

func (m *repoMock) Reserve(ctx context.Context, userID, bookID int64) (*model.Order, error) {
	return m.reserveFn(ctx, userID, bookID)
}
func (m *repoMock) Get(ctx context.Context, orderID int64) (*model.Order, error) {
	return m.getFn(ctx, orderID)
}
func (m *repoMock) GetOwned(ctx context.Context, orderID, userID int64) (*model.Order, error) {
	return m.getOwnedFn(ctx, orderID, userID)
}
func (m *repoMock) List(ctx context.Context) ([]model.Order, error) { return m.listFn(ctx) }
func (m *repoMock) MarkTaken(ctx context.Context, orderID int64) (bool, error) {
	return m.markTakenFn(ctx, orderID)
}
func (m *repoMock) MarkReturned(ctx context.Context, orderID int64) (bool, error) {
	return m.markReturnedFn(ctx, orderID)
}
func (m *repoMock) SetRating(ctx context.Context, orderID, userID int64, rating int) (bool, error) {
	return m.setRatingFn(ctx, orderID, userID, rating)
}
func (m *repoMock) ListExpiredBooked(ctx context.Context, cutoff time.Time) ([]int64, error) {
	return m.listExpiredFn(ctx, cutoff)
}
func (m *repoMock) CancelBooked(ctx context.Context, orderID int64, cutoff time.Time) (bool, error) {
	return m.cancelFn(ctx, orderID, cutoff)
}

func booked(id int64) *model.Order {
	return &model.Order{ID: id, UserID: 1, BookID: 7, OrderDate: time.Now(), Status: model.OrderBooked}
}

func taken(id int64) *model.Order {
	o := booked(id)
	now := time.Now()
	o.Status = model.OrderTaken
	o.TakenAt = &now
	return o
}

func returned(id int64) *model.Order {
	o := taken(id)
	now := time.Now()
	o.Status = model.OrderReturned
	o.ReturnedAt = &now
	return o
}

// --- reserve ---

func TestReserve_Success(t *testing.T) {
	m := &repoMock{
		reserveFn: func(ctx context.Context, userID, bookID int64) (*model.Order, error) {
			require.Equal(t, int64(1), userID)
			require.Equal(t, int64(7), bookID)
			return booked(10), nil
		},
	}
	s := ordersvc.New(m)

	o, err := s.Reserve(context.Background(), 1, 7)
	require.NoError(t, err)
	require.Equal(t, int64(10), o.ID)
	require.Equal(t, model.OrderBooked, o.Status)
}

func TestReserve_BookNotFound(t *testing.T) {
	m := &repoMock{
		reserveFn: func(ctx context.Context, userID, bookID int64) (*model.Order, error) {
			return nil, orderrepo.ErrBookNotFound
		},
	}
	s := ordersvc.New(m)

	_, err := s.Reserve(context.Background(), 1, 99)
	require.Error(t, err)
	require.Equal(t, ordersvc.ErrBookNotFound, ordersvc.Code(err))
}

func TestReserve_NoStock(t *testing.T) {
	m := &repoMock{
		reserveFn: func(ctx context.Context, userID, bookID int64) (*model.Order, error) {
			return nil, orderrepo.ErrNoStock
		},
	}
	s := ordersvc.New(m)

	_, err := s.Reserve(context.Background(), 1, 7)
	require.Error(t, err)
	require.Equal(t, ordersvc.ErrNoStock, ordersvc.Code(err))
}

// fakeInventory reproduces the repository's guarded decrement so concurrent
// reservations can be exercised without a database.
type fakeInventory struct {
	mu       sync.Mutex
	quantity int64
	nextID   int64
}

func (f *fakeInventory) Reserve(ctx context.Context, userID, bookID int64) (*model.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.quantity <= 0 {
		return nil, orderrepo.ErrNoStock
	}
	f.quantity--
	f.nextID++
	return &model.Order{ID: f.nextID, UserID: userID, BookID: bookID,
		OrderDate: time.Now(), Status: model.OrderBooked}, nil
}

func TestReserve_LastCopyHasOneWinner(t *testing.T) {
	inv := &fakeInventory{quantity: 1}
	m := &repoMock{reserveFn: inv.Reserve}
	s := ordersvc.New(m)

	const n = 16
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.Reserve(context.Background(), int64(i+1), 7)
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
		} else {
			require.Equal(t, ordersvc.ErrNoStock, ordersvc.Code(err))
		}
	}
	require.Equal(t, 1, wins)
	require.Equal(t, int64(0), inv.quantity)
}

// --- accept ---

func TestAccept_Success(t *testing.T) {
	markCalls := 0
	m := &repoMock{
		getFn: func(ctx context.Context, orderID int64) (*model.Order, error) {
			if markCalls == 0 {
				return booked(orderID), nil
			}
			return taken(orderID), nil
		},
		markTakenFn: func(ctx context.Context, orderID int64) (bool, error) {
			markCalls++
			return true, nil
		},
	}
	s := ordersvc.New(m)

	o, err := s.Accept(context.Background(), 10)
	require.NoError(t, err)
	require.Equal(t, 1, markCalls)
	require.Equal(t, model.OrderTaken, o.Status)
	require.NotNil(t, o.TakenAt)
}

func TestAccept_NotFound(t *testing.T) {
	m := &repoMock{
		getFn: func(ctx context.Context, orderID int64) (*model.Order, error) { return nil, nil },
	}
	s := ordersvc.New(m)

	_, err := s.Accept(context.Background(), 404)
	require.Equal(t, ordersvc.ErrOrderNotFound, ordersvc.Code(err))
}

func TestAccept_SecondCallConflicts(t *testing.T) {
	m := &repoMock{
		getFn: func(ctx context.Context, orderID int64) (*model.Order, error) {
			return taken(orderID), nil
		},
		markTakenFn: func(ctx context.Context, orderID int64) (bool, error) {
			t.Fatal("must not attempt transition on an already-taken order")
			return false, nil
		},
	}
	s := ordersvc.New(m)

	_, err := s.Accept(context.Background(), 10)
	require.Equal(t, ordersvc.ErrAlreadyTaken, ordersvc.Code(err))
}

func TestAccept_LostRaceConflicts(t *testing.T) {
	m := &repoMock{
		getFn: func(ctx context.Context, orderID int64) (*model.Order, error) {
			return booked(orderID), nil
		},
		markTakenFn: func(ctx context.Context, orderID int64) (bool, error) {
			// Someone else flipped it between the read and the update.
			return false, nil
		},
	}
	s := ordersvc.New(m)

	_, err := s.Accept(context.Background(), 10)
	require.Equal(t, ordersvc.ErrAlreadyTaken, ordersvc.Code(err))
}

// --- return ---

func TestReturn_BeforeAcceptConflicts(t *testing.T) {
	m := &repoMock{
		getFn: func(ctx context.Context, orderID int64) (*model.Order, error) {
			return booked(orderID), nil
		},
	}
	s := ordersvc.New(m)

	_, err := s.Return(context.Background(), 10)
	require.Equal(t, ordersvc.ErrNotTaken, ordersvc.Code(err))
}

func TestReturn_Success(t *testing.T) {
	marked := false
	m := &repoMock{
		getFn: func(ctx context.Context, orderID int64) (*model.Order, error) {
			if marked {
				return returned(orderID), nil
			}
			return taken(orderID), nil
		},
		markReturnedFn: func(ctx context.Context, orderID int64) (bool, error) {
			marked = true
			return true, nil
		},
	}
	s := ordersvc.New(m)

	o, err := s.Return(context.Background(), 10)
	require.NoError(t, err)
	require.True(t, marked)
	require.Equal(t, model.OrderReturned, o.Status)
	require.NotNil(t, o.ReturnedAt)
}

func TestReturn_TwiceConflicts(t *testing.T) {
	m := &repoMock{
		getFn: func(ctx context.Context, orderID int64) (*model.Order, error) {
			return returned(orderID), nil
		},
	}
	s := ordersvc.New(m)

	_, err := s.Return(context.Background(), 10)
	require.Equal(t, ordersvc.ErrAlreadyReturned, ordersvc.Code(err))
}

func TestReturn_NotFound(t *testing.T) {
	m := &repoMock{
		getFn: func(ctx context.Context, orderID int64) (*model.Order, error) { return nil, nil },
	}
	s := ordersvc.New(m)

	_, err := s.Return(context.Background(), 404)
	require.Equal(t, ordersvc.ErrOrderNotFound, ordersvc.Code(err))
}

// --- rate ---

func TestRate_OutOfRange(t *testing.T) {
	s := ordersvc.New(&repoMock{})

	err := s.Rate(context.Background(), 10, 1, 6)
	require.Equal(t, ordersvc.ErrBadRating, ordersvc.Code(err))

	err = s.Rate(context.Background(), 10, 1, -1)
	require.Equal(t, ordersvc.ErrBadRating, ordersvc.Code(err))
}

func TestRate_NotOwnerLooksMissing(t *testing.T) {
	m := &repoMock{
		getOwnedFn: func(ctx context.Context, orderID, userID int64) (*model.Order, error) {
			// Order 10 belongs to user 1; user 2 sees nothing.
			return nil, nil
		},
	}
	s := ordersvc.New(m)

	err := s.Rate(context.Background(), 10, 2, 5)
	require.Equal(t, ordersvc.ErrOrderNotFound, ordersvc.Code(err))
}

func TestRate_BeforeReturnConflicts(t *testing.T) {
	m := &repoMock{
		getOwnedFn: func(ctx context.Context, orderID, userID int64) (*model.Order, error) {
			return taken(orderID), nil
		},
	}
	s := ordersvc.New(m)

	err := s.Rate(context.Background(), 10, 1, 5)
	require.Equal(t, ordersvc.ErrNotReturned, ordersvc.Code(err))
}

func TestRate_Success(t *testing.T) {
	var got int
	m := &repoMock{
		getOwnedFn: func(ctx context.Context, orderID, userID int64) (*model.Order, error) {
			return returned(orderID), nil
		},
		setRatingFn: func(ctx context.Context, orderID, userID int64, rating int) (bool, error) {
			got = rating
			return true, nil
		},
	}
	s := ordersvc.New(m)

	require.NoError(t, s.Rate(context.Background(), 10, 1, 5))
	require.Equal(t, 5, got)
}

func TestRate_ZeroIsValid(t *testing.T) {
	m := &repoMock{
		getOwnedFn: func(ctx context.Context, orderID, userID int64) (*model.Order, error) {
			return returned(orderID), nil
		},
		setRatingFn: func(ctx context.Context, orderID, userID int64, rating int) (bool, error) {
			return true, nil
		},
	}
	s := ordersvc.New(m)

	require.NoError(t, s.Rate(context.Background(), 10, 1, 0))
}

func TestList_PassThrough(t *testing.T) {
	m := &repoMock{
		listFn: func(ctx context.Context) ([]model.Order, error) {
			return []model.Order{*booked(1), *taken(2)}, nil
		},
	}
	s := ordersvc.New(m)

	rows, err := s.List(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 2)
}

func TestList_Error(t *testing.T) {
	m := &repoMock{
		listFn: func(ctx context.Context) ([]model.Order, error) {
			return nil, errors.New("db down")
		},
	}
	s := ordersvc.New(m)

	_, err := s.List(context.Background())
	require.Error(t, err)
	require.Equal(t, ordersvc.ErrCode(""), ordersvc.Code(err))
}
