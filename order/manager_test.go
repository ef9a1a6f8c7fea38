package order

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockVenue struct {
	placed    []Request
	canceled  []string
	fillRatio float64
	errPlace  error
	errCancel error
	orders    map[string]Order
	seq       int
}

func newMockVenue() *mockVenue {
	return &mockVenue{orders: make(map[string]Order)}
}

func (m *mockVenue) PlaceOrder(_ context.Context, req Request) (Order, error) {
	m.placed = append(m.placed, req)
	if m.errPlace != nil {
		return Order{}, m.errPlace
	}
	m.seq++
	o := Order{
		ID:          strconv.Itoa(m.seq),
		ClientID:    req.ClientID,
		Symbol:      req.Symbol,
		Side:        req.Side,
		Type:        req.Type,
		TimeInForce: req.TimeInForce,
		Price:       req.Price,
		Quantity:    req.Quantity,
		Filled:      req.Quantity * m.fillRatio,
		Status:      StatusAck,
	}
	if m.fillRatio >= 1 {
		o.Status = StatusFilled
	}
	m.orders[o.ID] = o
	return o, nil
}

func (m *mockVenue) CancelOrder(_ context.Context, _ string, id string) error {
	m.canceled = append(m.canceled, id)
	if m.errCancel != nil {
		return m.errCancel
	}
	o, ok := m.orders[id]
	if !ok {
		return ErrUnknownOrder
	}
	o.Status = StatusCanceled
	m.orders[id] = o
	return nil
}

func (m *mockVenue) GetOrder(_ context.Context, _ string, id string) (Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return Order{}, ErrUnknownOrder
	}
	return o, nil
}

func (m *mockVenue) OpenOrders(_ context.Context, symbol string) ([]Order, error) {
	res := make([]Order, 0)
	for _, o := range m.orders {
		if o.Symbol == symbol && (o.Status == StatusAck || o.Status == StatusPartial || o.Status == StatusNew) {
			res = append(res, o)
		}
	}
	return res, nil
}

func TestManagerPlaceAndCancel(t *testing.T) {
	venue := newMockVenue()
	book := NewBook()
	m := NewManager(venue, book, testRules(), nil)

	o, err := m.Place(context.Background(), Request{Side: Buy, Type: Maker, TimeInForce: GTC, Price: 100.01, Quantity: 0.1}, "test")
	require.NoError(t, err)
	require.Len(t, venue.placed, 1)
	assert.Equal(t, "ETHUSDC", venue.placed[0].Symbol)
	assert.NotEmpty(t, venue.placed[0].ClientID)
	assert.LessOrEqual(t, len(venue.placed[0].ClientID), 36)
	assert.Len(t, book.Active("ETHUSDC"), 1)

	require.NoError(t, m.Cancel(context.Background(), o, "test"))
	got, ok := book.Get(o.ID)
	require.True(t, ok)
	assert.Equal(t, StatusCanceled, got.Status)
	assert.Empty(t, book.Active("ETHUSDC"))
}

func TestManagerRejectsInvalidOrder(t *testing.T) {
	venue := newMockVenue()
	m := NewManager(venue, NewBook(), testRules(), nil)

	_, err := m.Place(context.Background(), Request{Side: Buy, Price: 100.015, Quantity: 0.1}, "test")
	assert.ErrorIs(t, err, ErrRejected)
	assert.Empty(t, venue.placed, "invalid order must not reach the venue")
}

func TestManagerPlaceFailure(t *testing.T) {
	venue := newMockVenue()
	venue.errPlace = errors.New("insufficient balance")
	book := NewBook()
	m := NewManager(venue, book, testRules(), nil)

	_, err := m.Place(context.Background(), Request{Side: Sell, Price: 100.01, Quantity: 0.1}, "test")
	assert.Error(t, err)
	assert.Empty(t, book.List())
}

// 下单即时成交只经 Book 的成交通道发出一次。
func TestManagerImmediateFillGoesThroughBook(t *testing.T) {
	venue := newMockVenue()
	venue.fillRatio = 1
	book := NewBook()
	m := NewManager(venue, book, testRules(), nil)

	_, err := m.Place(context.Background(), Request{Side: Sell, Type: Taker, TimeInForce: FOK, Price: 100, Quantity: 0.2}, "test")
	require.NoError(t, err)
	require.Len(t, book.Fills(), 1)
	f := <-book.Fills()
	assert.Equal(t, Sell, f.Side)
	assert.InDelta(t, 0.2, f.Quantity, 1e-12)
}

func TestManagerCancelUnknownTreatedAsGone(t *testing.T) {
	venue := newMockVenue()
	book := NewBook()
	require.NoError(t, book.Upsert(Order{ID: "ghost", Symbol: "ETHUSDC", Status: StatusAck}))
	m := NewManager(venue, book, testRules(), nil)

	require.NoError(t, m.Cancel(context.Background(), Order{ID: "ghost", Symbol: "ETHUSDC"}, "test"))
	got, _ := book.Get("ghost")
	assert.Equal(t, StatusExpired, got.Status)
}

func TestManagerCancelAll(t *testing.T) {
	venue := newMockVenue()
	book := NewBook()
	m := NewManager(venue, book, testRules(), nil)
	for i := 0; i < 2; i++ {
		_, err := m.Place(context.Background(), Request{Side: Buy, Price: 100.01, Quantity: 0.1}, "test")
		require.NoError(t, err)
	}
	require.NoError(t, m.CancelAll(context.Background(), "ETHUSDC"))
	assert.Len(t, venue.canceled, 2)
	assert.Empty(t, book.Active("ETHUSDC"))
}
